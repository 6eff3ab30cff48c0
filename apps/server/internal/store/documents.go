package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	// MaxDocumentBytes bounds a serialized document on write and read.
	MaxDocumentBytes = 10 << 20
	// MaxArrayElements bounds every JSON array inside a document.
	MaxArrayElements = 10_000
)

// Well-known document keys.
const (
	PolicyTableKey     = "policyTable"
	DecisionHistoryKey = "decisionHistory"
	MetricsKey         = "metrics"
	patternKeyPrefix   = "patternRecord-"
)

// PatternRecordKey is the document key of one opponent's pattern record.
func PatternRecordKey(opponentID string) string {
	return patternKeyPrefix + opponentID
}

var log = logrus.WithField("component", "store")

// Store is the validated JSON document layer over a Backend. Every
// document is checked against its struct tags before it is written and
// after it is read.
type Store struct {
	backend  Backend
	validate *validator.Validate
}

func New(backend Backend) *Store {
	return &Store{
		backend:  backend,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Store) Close() error { return s.backend.Close() }

// Save validates doc, serializes it and replaces the stored body. Nothing
// is written when any check fails.
func (s *Store) Save(ctx context.Context, key string, doc any) error {
	if err := ValidateKey(key); err != nil {
		return wrap("save", key, err)
	}
	if err := s.check(doc); err != nil {
		return wrap("save", key, err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return wrap("save", key, err)
	}
	if err := checkBody(body); err != nil {
		return wrap("save", key, err)
	}
	if err := s.backend.Write(ctx, key, body); err != nil {
		return wrap("save", key, err)
	}
	log.WithFields(logrus.Fields{"key": key, "size": humanize.Bytes(uint64(len(body)))}).Debug("document saved")
	return nil
}

// Load reads key into doc, rejecting unknown fields and schema violations.
// A missing document yields a PersistenceError wrapping ErrNotFound.
func (s *Store) Load(ctx context.Context, key string, doc any) error {
	if err := ValidateKey(key); err != nil {
		return wrap("load", key, err)
	}
	body, err := s.backend.Read(ctx, key)
	if err != nil {
		return wrap("load", key, err)
	}
	if err := checkBody(body); err != nil {
		return wrap("load", key, err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(doc); err != nil {
		return wrap("load", key, fmt.Errorf("%w: %v", ErrSchema, err))
	}
	if err := s.check(doc); err != nil {
		return wrap("load", key, err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return wrap("delete", key, err)
	}
	return wrap("delete", key, s.backend.Delete(ctx, key))
}

func (s *Store) check(doc any) error {
	if err := s.validate.Struct(doc); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("%w: %T is not a document", ErrSchema, doc)
		}
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

func checkBody(body []byte) error {
	if len(body) > MaxDocumentBytes {
		return fmt.Errorf("%w: over %s", ErrTooLarge, humanize.Bytes(MaxDocumentBytes))
	}
	return checkArrayLimits(body, MaxArrayElements)
}

// checkArrayLimits walks the JSON token stream and fails as soon as any
// array holds more than max elements.
func checkArrayLimits(body []byte, max int) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	type frame struct {
		array bool
		n     int
	}
	var stack []frame
	bump := func() error {
		if len(stack) == 0 {
			return nil
		}
		top := &stack[len(stack)-1]
		if !top.array {
			return nil
		}
		top.n++
		if top.n > max {
			return fmt.Errorf("%w: more than %s elements", ErrTooManyElements, humanize.Comma(int64(max)))
		}
		return nil
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSchema, err)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				if err := bump(); err != nil {
					return err
				}
				stack = append(stack, frame{array: d == '['})
			case ']', '}':
				stack = stack[:len(stack)-1]
			}
			continue
		}
		if err := bump(); err != nil {
			return err
		}
	}
}
