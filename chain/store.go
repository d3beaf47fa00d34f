package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/internal/util"
	"github.com/hupe1980/promptmesh/logging"
)

const responsesFile = "responses.json"

var (
	// ErrPathTraversal is returned for chain names escaping the root directory.
	ErrPathTraversal = core.ErrPathTraversal

	// ErrStepNotFound is returned when no response is recorded for a step.
	ErrStepNotFound = errors.New("step response not found")
)

// Options configures a Store.
type Options struct {
	Logger logging.Logger
}

// Store is a core.StepStore persisting responses below a root directory.
type Store struct {
	root   string
	logger logging.Logger
}

// NewStore creates a store rooted at root. The directory is created lazily on
// the first write.
func NewStore(root string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve chain root: %w", err)
	}

	return &Store{root: filepath.Clean(abs), logger: logging.OrNoOp(opts.Logger)}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string { return s.root }

// Validate checks a chain name without touching the filesystem.
func (s *Store) Validate(chainName string) error {
	_, err := s.responsesPath(chainName)
	return err
}

func (s *Store) responsesPath(chainName string) (string, error) {
	if chainName == "" || chainName == "." || chainName == ".." || strings.ContainsAny(chainName, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, chainName)
	}

	p := filepath.Clean(filepath.Join(s.root, chainName, responsesFile))

	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, chainName)
	}

	return p, nil
}

// StepResponse returns the stored response for step.
func (s *Store) StepResponse(chainName string, step int) (string, error) {
	responses, err := s.Responses(chainName)
	if err != nil {
		return "", err
	}

	resp, ok := responses[step]
	if !ok {
		return "", fmt.Errorf("%w: chain %q step %d", ErrStepNotFound, chainName, step)
	}

	return resp, nil
}

// Responses returns all stored responses of a chain. A chain without a
// responses file yields an empty map.
func (s *Store) Responses(chainName string) (map[int]string, error) {
	p, err := s.responsesPath(chainName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[int]string{}, nil
		}
		return nil, fmt.Errorf("read chain responses: %w", err)
	}

	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode chain responses: %w", err)
	}

	out := make(map[int]string, len(raw))
	for k, v := range raw {
		n, err := strconv.Atoi(k)
		if err != nil {
			s.logger.Warn("chain.responses.bad_key", "chain", chainName, "key", k)
			continue
		}
		out[n] = util.Stringify(v)
	}

	return out, nil
}

// SaveStepResponse records response for step, replacing any previous value.
func (s *Store) SaveStepResponse(chainName string, step int, response string) error {
	p, err := s.responsesPath(chainName)
	if err != nil {
		return err
	}

	responses, err := s.Responses(chainName)
	if err != nil {
		return err
	}
	responses[step] = response

	keys := make([]int, 0, len(responses))
	for k := range responses {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	raw := make(map[string]string, len(responses))
	for _, k := range keys {
		raw[strconv.Itoa(k)] = responses[k]
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chain responses: %w", err)
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chain dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, responsesFile+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write chain responses: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close chain responses: %w", err)
	}

	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("replace chain responses: %w", err)
	}

	s.logger.Debug("chain.step.saved", "chain", chainName, "step", step)

	return nil
}
