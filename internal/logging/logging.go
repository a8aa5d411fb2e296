// Package logging builds the zap.Logger used throughout peerd, factored
// out of the teacher's inline zap.NewProduction() call in cmd/acp-node
// so every entry point constructs a logger the same way.
package logging

import (
	"go.uber.org/zap"
)

// New builds a production logger tagged with nodeID, or a development
// (console) logger when dev is true.
func New(nodeID string, dev bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("node_id", nodeID)), nil
}
