package resolver

import "github.com/peerdoc/peerdoc/internal/hlc"

// mergeJSON implements spec §4.2's mergeJson recursion:
//   - type mismatch -> LWW pick the winner-side value
//   - objects -> field-wise recurse; one-sided keys are retained as-is
//   - arrays of uniquely-id'd objects -> merge element-wise by id,
//     appending new-on-remote elements; otherwise whole-array LWW
//   - primitives -> equal values keep either, otherwise LWW
func mergeJSON(local JSONValue, localTS hlc.Timestamp, remote JSONValue, remoteTS hlc.Timestamp) JSONValue {
	remoteWins := remoteTS.After(localTS)

	if local.Kind != remote.Kind {
		return pick(local, remote, remoteWins)
	}

	switch local.Kind {
	case KindObject:
		return mergeObjects(local, localTS, remote, remoteTS)
	case KindArray:
		return mergeArrays(local, localTS, remote, remoteTS, remoteWins)
	default:
		if Equal(local, remote) {
			return local
		}
		return pick(local, remote, remoteWins)
	}
}

func pick(local, remote JSONValue, remoteWins bool) JSONValue {
	if remoteWins {
		return remote
	}
	return local
}

func mergeObjects(local JSONValue, localTS hlc.Timestamp, remote JSONValue, remoteTS hlc.Timestamp) JSONValue {
	merged := make(map[string]JSONValue, len(local.Object)+len(remote.Object))
	for k, lv := range local.Object {
		merged[k] = lv
	}
	for k, rv := range remote.Object {
		if lv, ok := local.Object[k]; ok {
			merged[k] = mergeJSON(lv, localTS, rv, remoteTS)
		} else {
			merged[k] = rv
		}
	}
	return JSONValue{Kind: KindObject, Object: merged}
}

func mergeArrays(local JSONValue, localTS hlc.Timestamp, remote JSONValue, remoteTS hlc.Timestamp, remoteWins bool) JSONValue {
	if !allUniquelyIdentifiedObjects(local.Array) || !allUniquelyIdentifiedObjects(remote.Array) {
		return pick(local, remote, remoteWins)
	}

	order := make([]string, 0, len(local.Array))
	byID := make(map[string]JSONValue, len(local.Array))
	for _, el := range local.Array {
		id, _ := elementID(el)
		order = append(order, id)
		byID[id] = el
	}

	for _, el := range remote.Array {
		id, _ := elementID(el)
		if lv, ok := byID[id]; ok {
			byID[id] = mergeJSON(lv, localTS, el, remoteTS)
		} else {
			order = append(order, id)
			byID[id] = el
		}
	}

	out := make([]JSONValue, len(order))
	for i, id := range order {
		out[i] = byID[id]
	}
	return JSONValue{Kind: KindArray, Array: out}
}

// allUniquelyIdentifiedObjects reports whether every element is an object
// carrying a distinct id/_id field (spec §4.2's precondition for
// element-wise array merge).
func allUniquelyIdentifiedObjects(elements []JSONValue) bool {
	seen := make(map[string]bool, len(elements))
	for _, el := range elements {
		id, ok := elementID(el)
		if !ok || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}
