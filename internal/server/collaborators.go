/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"

	"github.com/kvn147/Speak-Easy-Copy/internal/analysis"
	"github.com/kvn147/Speak-Easy-Copy/internal/config"
	"github.com/kvn147/Speak-Easy-Copy/internal/eventbus"
	"github.com/kvn147/Speak-Easy-Copy/internal/events"
)

type collaborators struct {
	detector    analysis.EmotionDetector
	transcriber analysis.Transcriber
	advisor     analysis.AdviceGenerator
	summarizer  analysis.Summarizer
}

// newCollaborators builds the analysis adapters. Anything that cannot be configured is
// replaced by analysis.Disabled so sessions still run and report the failure per call.
func (s *Server) newCollaborators(ctx context.Context) collaborators {
	var c collaborators

	awsCfg, err := s.cfg.AWS(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("AWS configuration unavailable, emotion detection and transcription disabled")
		disabled := analysis.Disabled{Reason: "aws configuration unavailable"}
		c.detector = disabled
		c.transcriber = disabled
	} else {
		c.detector = analysis.NewRekognitionDetector(awsCfg, s.logger)
		c.transcriber = analysis.NewTranscribeStreamer(awsCfg, s.logger)
		s.logger.Info().
			Str("region", awsCfg.Region).
			Bool("static_credentials", s.cfg.AWSAccessKeyID != "").
			Msg("AWS analysis collaborators initialized")
	}

	coach, err := analysis.NewOpenAICoach(analysis.OpenAIConfig{
		BaseURL: s.cfg.OpenAIBaseURL,
		APIKey:  s.cfg.OpenAIAPIKey,
		Model:   s.cfg.OpenAIModel,
		Timeout: s.cfg.CallTimeout,
	}, nil, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("OpenAI coach unavailable, fallback advice and placeholder summaries will be used")
		disabled := analysis.Disabled{Reason: "openai api key not configured"}
		c.advisor = disabled
		c.summarizer = disabled
	} else {
		c.advisor = coach
		c.summarizer = coach
		s.logger.Info().Str("model", s.cfg.OpenAIModel).Msg("OpenAI coach initialized")
	}

	return c
}

// closableBroker is a relay-backed bus with connections to release.
type closableBroker interface {
	events.Broker
	Close() error
}

func (s *Server) newEventBus() events.Broker {
	var bus closableBroker
	switch s.cfg.EventBus {
	case config.EventBusRedis:
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		bus = eventbus.NewRedisBus(redisCfg, s.cfg.InstanceID, s.logger)
	case config.EventBusNATS:
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		bus = eventbus.NewNATSBus(natsCfg, s.cfg.InstanceID, s.logger)
	default:
		return events.NewBus()
	}
	s.DeferClose(bus.Close)
	return bus
}
