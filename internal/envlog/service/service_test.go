package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	directoryservice "coldchain/internal/directory/service"
	directorystore "coldchain/internal/directory/store"
	envlogstore "coldchain/internal/envlog/store"
	"coldchain/internal/escrow/settlement"
	escrowstore "coldchain/internal/escrow/store"
	productmodels "coldchain/internal/product/models"
	productservice "coldchain/internal/product/service"
	productstore "coldchain/internal/product/store"
	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
	"coldchain/pkg/requestcontext"
)

// =============================================================================
// Environmental Log Test Suite
// =============================================================================
// Justification: the violation detector is the bridge between sensor data and
// the lifecycle state machine. These tests run against the real product
// service so the forced transition and its trail record are observed
// end to end.

type EnvLogSuite struct {
	suite.Suite
	readings *envlogstore.InMemory
	trail    *productstore.TrailInMemory
	products *productservice.Service
	service  *Service
	now      time.Time
}

func TestEnvLogSuite(t *testing.T) {
	suite.Run(t, new(EnvLogSuite))
}

func (s *EnvLogSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	directory := directoryservice.New(directorystore.NewInMemory(), directoryservice.WithLogger(logger))
	s.trail = productstore.NewTrailInMemory()
	s.products = productservice.New(productstore.NewInMemory(), s.trail, directory,
		escrowstore.NewInMemory(), settlement.NewBank(), productservice.WithLogger(logger))
	s.readings = envlogstore.NewInMemory()
	s.service = New(s.readings, directory, s.products, WithLogger(logger))

	ctx := s.as("admin")
	_, err := directory.Register(ctx, "farmer-1", id.RoleFarmer, "")
	s.Require().NoError(err)
	_, err = directory.Register(ctx, "transporter-1", id.RoleTransporter, "")
	s.Require().NoError(err)

	_, err = s.products.Create(s.as("farmer-1"), productservice.CreateParams{
		ID:        "prod-1",
		Name:      "Raw milk",
		ExpiresAt: s.now.Add(72 * time.Hour),
		Price:     500,
		MinTemp:   20,
		MaxTemp:   60,
	})
	s.Require().NoError(err)
}

func (s *EnvLogSuite) as(identity id.Identity) context.Context {
	ctx := requestcontext.WithActor(context.Background(), identity)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *EnvLogSuite) TestLog() {
	s.Run("in-range reading leaves the product untouched", func() {
		r, err := s.service.Log(s.as("transporter-1"), "prod-1", 40, nil, "truck-12")
		s.Require().NoError(err)
		s.Equal(40, r.Temperature)
		s.Equal(id.Identity("transporter-1"), r.Reporter)

		p, err := s.products.Get(context.Background(), "prod-1")
		s.Require().NoError(err)
		s.Equal(productmodels.StateCreated, p.State)
	})

	s.Run("humidity is recorded when reported", func() {
		humidity := 55
		r, err := s.service.Log(s.as("transporter-1"), "prod-1", 40, &humidity, "truck-12")
		s.Require().NoError(err)
		s.Require().NotNil(r.Humidity)
		s.Equal(55, *r.Humidity)
	})

	s.Run("humidity outside 0-100 is rejected", func() {
		humidity := 101
		_, err := s.service.Log(s.as("transporter-1"), "prod-1", 40, &humidity, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("boundary readings are in range", func() {
		for _, temp := range []int{20, 60} {
			_, err := s.service.Log(s.as("transporter-1"), "prod-1", temp, nil, "")
			s.Require().NoError(err, "temperature %d", temp)
		}
		p, err := s.products.Get(context.Background(), "prod-1")
		s.Require().NoError(err)
		s.Equal(productmodels.StateCreated, p.State)
	})

	s.Run("out-of-range reading forces the violation sink", func() {
		_, err := s.service.Log(s.as("transporter-1"), "prod-1", 61, nil, "truck-12")
		s.Require().NoError(err, "logging succeeds even when it triggers the violation")

		p, err := s.products.Get(context.Background(), "prod-1")
		s.Require().NoError(err)
		s.Equal(productmodels.StateViolated, p.State)

		trail, err := s.trail.ListByProduct(context.Background(), "prod-1")
		s.Require().NoError(err)
		s.Equal(productmodels.StateViolated, trail[len(trail)-1].State)
	})

	s.Run("readings keep landing after the violation", func() {
		before, err := s.service.List(s.as("transporter-1"), "prod-1")
		s.Require().NoError(err)

		_, err = s.service.Log(s.as("transporter-1"), "prod-1", 70, nil, "")
		s.Require().NoError(err)

		after, err := s.service.List(s.as("transporter-1"), "prod-1")
		s.Require().NoError(err)
		s.Len(after, len(before)+1)

		trail, err := s.trail.ListByProduct(context.Background(), "prod-1")
		s.Require().NoError(err)
		violated := 0
		for _, t := range trail {
			if t.State == productmodels.StateViolated {
				violated++
			}
		}
		s.Equal(1, violated, "repeat violations must not duplicate the transition")
	})

	s.Run("unregistered reporter is rejected and nothing lands", func() {
		before, err := s.readings.ListByProduct(context.Background(), "prod-1")
		s.Require().NoError(err)

		_, err = s.service.Log(s.as("stranger"), "prod-1", 40, nil, "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		after, err := s.readings.ListByProduct(context.Background(), "prod-1")
		s.Require().NoError(err)
		s.Len(after, len(before))
	})

	s.Run("unknown product is not found", func() {
		_, err := s.service.Log(s.as("transporter-1"), "prod-ghost", 40, nil, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
