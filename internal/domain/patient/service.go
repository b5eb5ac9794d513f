package patient

import (
	"context"

	"github.com/rs/zerolog"
)

const listCacheKey = "patients:list"

// ListCache caches the result of List between writes.
type ListCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

type Service struct {
	repo   Repository
	cache  ListCache
	logger zerolog.Logger
}

type Option func(*Service)

// WithCache enables read-through caching of List. Every write invalidates it.
func WithCache(c ListCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every patient with its diagnosis, or NoDiagnosisMarker when
// it has none.
func (s *Service) List(ctx context.Context) ([]*PatientRecord, error) {
	if s.cache != nil {
		var cached []*PatientRecord
		hit, err := s.cache.Get(ctx, listCacheKey, &cached)
		if err != nil {
			s.logger.Warn().Err(err).Msg("patient list cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, listCacheKey, records); err != nil {
			s.logger.Warn().Err(err).Msg("patient list cache write failed")
		}
	}
	return records, nil
}

// Create inserts the patient and, when the input carries a non-empty
// diagnosis, its diagnosis. Both writes commit together.
func (s *Service) Create(ctx context.Context, in *PatientInput) (int64, error) {
	defer s.invalidate(ctx)

	p := in.patient(0)
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		if !in.HasDiagnosis() {
			return nil
		}
		return s.repo.CreateDiagnosis(ctx, &Diagnosis{PatientID: p.ID, Text: in.Diagnosis})
	})
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// Update overwrites the patient's fields and sets its diagnosis, inserting
// the diagnosis row if the patient had none.
func (s *Service) Update(ctx context.Context, id int64, in *PatientInput) error {
	defer s.invalidate(ctx)

	return s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, in.patient(id)); err != nil {
			return err
		}
		return s.repo.UpsertDiagnosis(ctx, &Diagnosis{PatientID: id, Text: in.Diagnosis})
	})
}

// Delete removes the patient's diagnoses and then the patient. A missing id
// is not an error.
func (s *Service) Delete(ctx context.Context, id int64) error {
	defer s.invalidate(ctx)

	return s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteDiagnoses(ctx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), listCacheKey); err != nil {
		s.logger.Warn().Err(err).Msg("patient list cache invalidation failed")
	}
}
