/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
)

type faceAPI interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

// RekognitionDetector detects faces with Amazon Rekognition.
type RekognitionDetector struct {
	api    faceAPI
	logger zerolog.Logger
}

// NewRekognitionDetector creates a detector from an AWS configuration.
func NewRekognitionDetector(cfg aws.Config, logger zerolog.Logger) *RekognitionDetector {
	return newRekognitionDetector(rekognition.NewFromConfig(cfg), logger)
}

func newRekognitionDetector(api faceAPI, logger zerolog.Logger) *RekognitionDetector {
	return &RekognitionDetector{
		api:    api,
		logger: logger.With().Str("component", "rekognition").Logger(),
	}
}

// Detect returns every face in image with its dominant emotion. An image with no faces
// yields an empty slice and no error.
func (d *RekognitionDetector) Detect(ctx context.Context, image []byte) ([]Face, error) {
	ctx, span := telemetry.StartCollaboratorSpan(ctx, "rekognition", "DetectFaces")
	defer span.End()

	start := time.Now()
	out, err := d.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: image},
		Attributes: []types.Attribute{types.AttributeAll},
	})
	telemetry.ObserveCollaborator("detect", start, err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, classify("detect faces", err)
	}

	faces := make([]Face, 0, len(out.FaceDetails))
	for _, detail := range out.FaceDetails {
		faces = append(faces, faceFromDetail(detail))
	}
	span.SetAttributes(attribute.Int("speakeasy.faces", len(faces)))

	d.logger.Debug().Int("faces", len(faces)).Int("bytes", len(image)).Msg("faces detected")
	return faces, nil
}

func faceFromDetail(detail types.FaceDetail) Face {
	face := Face{DominantLabel: string(types.EmotionNameUnknown)}

	for _, e := range detail.Emotions {
		face.Emotions = append(face.Emotions, EmotionScore{
			Type:       string(e.Type),
			Confidence: float64(aws.ToFloat32(e.Confidence)),
		})
	}
	if best, ok := DominantEmotion(face.Emotions); ok {
		face.DominantLabel = best.Type
		face.Confidence = best.Confidence
	}

	if detail.AgeRange != nil {
		face.AgeLow = int(aws.ToInt32(detail.AgeRange.Low))
		face.AgeHigh = int(aws.ToInt32(detail.AgeRange.High))
	}
	if detail.Gender != nil {
		face.Gender = string(detail.Gender.Value)
	}
	return face
}
