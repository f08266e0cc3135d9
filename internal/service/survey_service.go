package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatsurvey/internal/model"
	"chatsurvey/internal/repository"
	"chatsurvey/internal/surveyconfig"
)

var (
	ErrSurveyNotFound = errors.New("survey not found")
	ErrNoActiveSurvey = errors.New("no active survey configured")
	ErrSurveyReadOnly = errors.New("survey store not configured")
)

// SurveyService resolves the survey sessions run against and manages stored
// survey definitions
type SurveyService struct {
	surveyRepo repository.SurveyRepo
	configPath string
	surveyID   string

	mu         sync.Mutex
	fileConfig *model.SurveyConfig
	parsed     map[string]parsedSurvey
}

type parsedSurvey struct {
	updatedAt time.Time
	config    *model.SurveyConfig
}

// NewSurveyService creates a new survey service. surveyID selects a stored
// survey as the active one; otherwise configPath is loaded from disk.
func NewSurveyService(surveyRepo repository.SurveyRepo, configPath, surveyID string) *SurveyService {
	return &SurveyService{
		surveyRepo: surveyRepo,
		configPath: configPath,
		surveyID:   surveyID,
		parsed:     map[string]parsedSurvey{},
	}
}

// Active returns the survey new and resumed sessions run against
func (s *SurveyService) Active(ctx context.Context) (*model.SurveyConfig, error) {
	if s.surveyID != "" {
		return s.Config(ctx, s.surveyID)
	}
	if s.configPath == "" {
		return nil, ErrNoActiveSurvey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fileConfig == nil {
		cfg, _, err := surveyconfig.Load(s.configPath)
		if err != nil {
			return nil, err
		}
		s.fileConfig = cfg
	}
	return s.fileConfig, nil
}

// Config parses a stored survey. Parsed configs are reused until the stored
// survey changes.
func (s *SurveyService) Config(ctx context.Context, id string) (*model.SurveyConfig, error) {
	stored, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	cached, ok := s.parsed[id]
	s.mu.Unlock()
	if ok && cached.updatedAt.Equal(stored.UpdatedAt) {
		return cached.config, nil
	}

	cfg, _, err := surveyconfig.Parse(stored.Definition, surveyconfig.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("survey %s: %w", id, err)
	}

	s.mu.Lock()
	s.parsed[id] = parsedSurvey{updatedAt: stored.UpdatedAt, config: cfg}
	s.mu.Unlock()
	return cfg, nil
}

// Create validates a JSON or YAML definition and stores it as JSON
func (s *SurveyService) Create(ctx context.Context, name string, definition []byte) (*model.StoredSurvey, *surveyconfig.Report, error) {
	if s.surveyRepo == nil {
		return nil, nil, ErrSurveyReadOnly
	}
	doc, cfg, report, err := normalizeDefinition(definition)
	if err != nil {
		return nil, report, err
	}
	if name == "" {
		name = cfg.Survey.Name
	}

	survey := &model.StoredSurvey{Name: name, Definition: doc}
	if _, err := s.surveyRepo.Create(ctx, survey); err != nil {
		return nil, report, err
	}
	return survey, report, nil
}

// GetByID retrieves a stored survey
func (s *SurveyService) GetByID(ctx context.Context, id string) (*model.StoredSurvey, error) {
	if s.surveyRepo == nil {
		return nil, ErrSurveyNotFound
	}
	survey, err := s.surveyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}
	return survey, nil
}

// List returns every stored survey
func (s *SurveyService) List(ctx context.Context) ([]*model.StoredSurvey, error) {
	if s.surveyRepo == nil {
		return []*model.StoredSurvey{}, nil
	}
	return s.surveyRepo.List(ctx)
}

// Update replaces a stored survey's definition after validating it
func (s *SurveyService) Update(ctx context.Context, id, name string, definition []byte) (*model.StoredSurvey, *surveyconfig.Report, error) {
	survey, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	doc, cfg, report, err := normalizeDefinition(definition)
	if err != nil {
		return nil, report, err
	}

	survey.Definition = doc
	switch {
	case name != "":
		survey.Name = name
	case cfg.Survey.Name != "":
		survey.Name = cfg.Survey.Name
	}
	if err := s.surveyRepo.Update(ctx, survey); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, report, ErrSurveyNotFound
		}
		return nil, report, err
	}
	return survey, report, nil
}

// Delete deletes a stored survey
func (s *SurveyService) Delete(ctx context.Context, id string) error {
	if s.surveyRepo == nil {
		return ErrSurveyReadOnly
	}
	s.mu.Lock()
	delete(s.parsed, id)
	s.mu.Unlock()
	return s.surveyRepo.Delete(ctx, id)
}

func normalizeDefinition(definition []byte) (json.RawMessage, *model.SurveyConfig, *surveyconfig.Report, error) {
	cfg, report, err := surveyconfig.Parse(definition, "")
	if err != nil {
		return nil, nil, report, err
	}
	doc, err := json.Marshal(cfg)
	if err != nil {
		return nil, nil, report, fmt.Errorf("encode survey: %w", err)
	}
	return doc, cfg, report, nil
}
