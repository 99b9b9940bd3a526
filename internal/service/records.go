package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/milestono/api/internal/core"
	"github.com/milestono/api/internal/domain/model"
	apperrors "github.com/milestono/api/internal/errors"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// RecordListQuery is a page request with an optional JMESPath filter over record data.
type RecordListQuery struct {
	Limit  int
	Offset int
	Filter string
}

// RecordServiceOptions groups dependencies for RecordService.
type RecordServiceOptions struct {
	Model     string
	Repo      core.RecordRepository
	Evaluator JMESPathEvaluator
}

// RecordService exposes one model's store to the records API.
type RecordService struct {
	model string
	repo  core.RecordRepository
	jems  JMESPathEvaluator
}

// NewRecordService constructs a new RecordService.
func NewRecordService(opts RecordServiceOptions) *RecordService {
	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	repo := opts.Repo
	if repo == nil {
		repo = core.UnavailableRecords{Model: opts.Model, Reason: "no store configured"}
	}
	return &RecordService{model: opts.Model, repo: repo, jems: jems}
}

// Model returns the model name this service stores.
func (s *RecordService) Model() string { return s.model }

// Create stores a new record.
func (s *RecordService) Create(ctx context.Context, doc map[string]any) (*model.Record, error) {
	if len(doc) == 0 {
		return nil, apperrors.Validation("record body cannot be empty")
	}
	return s.repo.Create(ctx, doc)
}

// GetByID retrieves a record by ID.
func (s *RecordService) GetByID(ctx context.Context, id string) (*model.Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.ValidationField("id", "id is required")
	}
	return s.repo.GetByID(ctx, id)
}

// List returns a page of records. When q.Filter is set only records whose
// data evaluates truthy are kept; the filter applies within the fetched page.
func (s *RecordService) List(ctx context.Context, q RecordListQuery) ([]*model.Record, error) {
	filter := strings.TrimSpace(q.Filter)
	if err := s.jems.Validate(filter); err != nil {
		return nil, apperrors.ValidationField("filter", fmt.Sprintf("invalid filter expression: %v", err))
	}

	records, err := s.repo.List(ctx, model.RecordListOptions{Limit: q.Limit, Offset: q.Offset})
	if err != nil || filter == "" {
		return records, err
	}

	out := make([]*model.Record, 0, len(records))
	for _, rec := range records {
		keep, evalErr := s.matches(filter, rec)
		if evalErr != nil {
			return nil, apperrors.ValidationField("filter", fmt.Sprintf("evaluate filter: %v", evalErr))
		}
		if keep {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *RecordService) matches(expr string, rec *model.Record) (bool, error) {
	data, err := toJSONValue(rec.Data)
	if err != nil {
		return false, err
	}
	res, err := s.jems.Evaluate(expr, data)
	if err != nil {
		return false, err
	}
	return truthy(res), nil
}

// toJSONValue reduces v to the generic maps/slices JMESPath understands.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record data: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal record data: %w", err)
	}
	return out, nil
}

// truthy follows JMESPath truthiness: false, null and empty values are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
