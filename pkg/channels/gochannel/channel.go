// Package gochannel provides the in-memory event transport used for local
// development and single-process deployments.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// CreateChannel builds a GoChannel pub/sub pair. The same instance backs both
// sides, so events never leave the process.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 1000,
			Persistent:          false,
		},
		logger,
	)

	return pubSub, pubSub, nil
}

// CreateTestChannel builds a small, blocking GoChannel pair. Publish does not
// return until the subscriber acks, which keeps tests deterministic.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
