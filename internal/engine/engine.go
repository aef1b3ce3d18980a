package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Hubeet-AI/anon-infer-proxy/internal/crypto"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/detector"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/storage"
	"github.com/Hubeet-AI/anon-infer-proxy/internal/strategy"
	"go.uber.org/zap"
)

// Engine errors. Storage failures carry storage.ErrStorage; an unknown
// mapping id at deanonymize time is a validation error, not a storage one.
var (
	ErrValidation = errors.New("validation error")
	ErrSignature  = errors.New("signature error")
)

// Result is returned by Anonymize. It is transient: the engine keeps no copy
// beyond the mapping record already persisted.
type Result struct {
	AnonPrompt string `json:"anonPrompt"`
	MapID      string `json:"mapId"`
	Signature  string `json:"signature,omitempty"`
	TokenCount int    `json:"tokenCount"`

	// ByType counts detections per token type. Serving layers use it for
	// events and auditing; it is not part of the response body.
	ByType map[detector.TokenType]int `json:"-"`
}

// Info describes a running engine for health/info surfaces.
type Info struct {
	Strategy          strategy.Info `json:"strategy"`
	Storage           string        `json:"storage"`
	SignaturesEnabled bool          `json:"signaturesEnabled"`
}

// Engine wires the detector, anonymization strategy and storage backend into
// the anonymize/deanonymize lifecycle. An Engine is safe for concurrent use;
// operations are self-contained and share no mutable state beyond the
// storage backend's own table.
type Engine struct {
	cfg      Config
	detector *detector.Detector
	strategy strategy.Strategy
	storage  storage.Backend
	logger   *zap.Logger

	closeOnce sync.Once
}

// New merges cfg over defaults, validates it and constructs the
// collaborators.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if logger == nil || !cfg.EnableLogging {
		logger = zap.NewNop()
	}

	det, err := detector.New(cfg.Detector, logger.With(zap.String("component", "detector")))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	strat, err := strategy.New(cfg.Strategy, cfg.CustomSalt, logger.With(zap.String("component", "strategy")))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	backend, err := newBackend(cfg, logger.With(zap.String("component", "storage")))
	if err != nil {
		return nil, err
	}

	logger.Info("Anonymization engine initialized",
		zap.String("strategy", cfg.Strategy),
		zap.String("storage", cfg.Storage),
		zap.Bool("signatures", cfg.EnableSignatures),
	)

	return &Engine{
		cfg:      cfg,
		detector: det,
		strategy: strat,
		storage:  backend,
		logger:   logger,
	}, nil
}

func newBackend(cfg Config, logger *zap.Logger) (storage.Backend, error) {
	switch cfg.Storage {
	case StorageMemory:
		return storage.NewMemory(cfg.Memory, logger), nil
	case StorageVault:
		return storage.NewVault(cfg.Vault, logger)
	case StorageRedis:
		return storage.NewRedis(cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", ErrValidation, cfg.Storage)
	}
}

// Anonymize detects sensitive tokens in prompt, substitutes proxy tokens and
// persists the resulting mapping under a fresh random id. A prompt with no
// detections still gets an id and an empty stored mapping, so deanonymize on
// that id is always valid and a no-op.
func (e *Engine) Anonymize(ctx context.Context, prompt string) (*Result, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", ErrValidation)
	}

	tokens := e.detector.DetectTokens(prompt)

	mapping := make(map[string]string, len(tokens))
	byType := make(map[detector.TokenType]int, len(tokens))
	anonPrompt := prompt

	// Substitute rightmost-first so each splice leaves the offsets of the
	// detections to its left intact. A proxy collision overwrites the earlier
	// mapping entry: last write wins.
	for i := len(tokens) - 1; i >= 0; i-- {
		token := tokens[i]
		proxy, err := e.strategy.Anonymize(ctx, token.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		mapping[proxy] = token.Value
		byType[token.Type]++
		anonPrompt = anonPrompt[:token.StartIndex] + proxy + anonPrompt[token.EndIndex:]
	}

	mapID := crypto.GenerateMapID()

	record := &storage.MappingData{
		ID:       mapID,
		Mappings: mapping,
		Strategy: e.cfg.Strategy,
	}

	var signature string
	if e.cfg.EnableSignatures {
		signature = crypto.Sign(signaturePayload(mapID, mapping), e.cfg.SignatureSecret)
		record.Signature = signature
	}

	if err := e.storage.Store(ctx, mapID, record); err != nil {
		return nil, err
	}

	e.logger.Info("Prompt anonymized",
		zap.String("map_id", mapID),
		zap.Int("token_count", len(tokens)),
		zap.Bool("signed", signature != ""),
	)

	return &Result{
		AnonPrompt: anonPrompt,
		MapID:      mapID,
		Signature:  signature,
		TokenCount: len(tokens),
		ByType:     byType,
	}, nil
}

// Deanonymize restores the original values for every known proxy token in
// output. Proxy-shaped text with no mapping entry is left untouched; the
// operation is a best-effort substitution over known pairs, not a
// completeness check.
func (e *Engine) Deanonymize(ctx context.Context, output, mapID, signature string) (string, error) {
	if output == "" {
		return "", fmt.Errorf("%w: output cannot be empty", ErrValidation)
	}
	if mapID == "" {
		return "", fmt.Errorf("%w: mapping id cannot be empty", ErrValidation)
	}

	record, err := e.storage.Retrieve(ctx, mapID)
	if errors.Is(err, storage.ErrNotFound) {
		// Wraps both sentinels so callers can treat this as either a bad
		// request or a missing resource.
		return "", fmt.Errorf("%w: unknown mapping id: %w", ErrValidation, storage.ErrNotFound)
	}
	if err != nil {
		return "", err
	}

	if e.cfg.EnableSignatures {
		if err := e.verifySignature(record, mapID, signature); err != nil {
			return "", err
		}
	}

	if len(record.Mappings) == 0 {
		return output, nil
	}

	// Replacement order across pairs must not matter: proxies are mutually
	// unambiguous tokens. Sorted order keeps the walk deterministic anyway.
	proxies := make([]string, 0, len(record.Mappings))
	for proxy := range record.Mappings {
		proxies = append(proxies, proxy)
	}
	sort.Strings(proxies)

	restored := output
	for _, proxy := range proxies {
		restored = strings.ReplaceAll(restored, proxy, record.Mappings[proxy])
	}

	e.logger.Info("Output deanonymized",
		zap.String("map_id", mapID),
		zap.Int("mapping_entries", len(record.Mappings)),
	)

	return restored, nil
}

// verifySignature runs the two independent integrity checks: the caller's
// signature must match the stored one, and the stored one must verify against
// a fresh HMAC over the canonical payload.
func (e *Engine) verifySignature(record *storage.MappingData, mapID, signature string) error {
	if signature == "" {
		return fmt.Errorf("%w: signature is required", ErrSignature)
	}
	if record.Signature == "" {
		return fmt.Errorf("%w: stored mapping is unsigned", ErrSignature)
	}
	if !crypto.ConstantTimeCompare(signature, record.Signature) {
		return fmt.Errorf("%w: signature mismatch", ErrSignature)
	}
	if !crypto.Verify(signaturePayload(mapID, record.Mappings), e.cfg.SignatureSecret, record.Signature) {
		return fmt.Errorf("%w: mapping failed integrity verification", ErrSignature)
	}
	return nil
}

// DeleteMapping removes the mapping stored under id. Idempotent.
func (e *Engine) DeleteMapping(ctx context.Context, mapID string) error {
	if mapID == "" {
		return fmt.Errorf("%w: mapping id cannot be empty", ErrValidation)
	}
	if err := e.storage.Delete(ctx, mapID); err != nil {
		return err
	}
	e.logger.Info("Mapping deleted", zap.String("map_id", mapID))
	return nil
}

// HealthCheck reports storage health. Strategy health is implied by
// successful construction.
func (e *Engine) HealthCheck(ctx context.Context) bool {
	return e.storage.HealthCheck(ctx)
}

// DetectionStats runs detection over text and returns aggregate statistics
// without anonymizing anything.
func (e *Engine) DetectionStats(text string) detector.Stats {
	return e.detector.GetDetectionStats(text)
}

// Info returns metadata about the running engine.
func (e *Engine) Info() Info {
	return Info{
		Strategy:          e.strategy.Info(),
		Storage:           e.cfg.Storage,
		SignaturesEnabled: e.cfg.EnableSignatures,
	}
}

// Close releases storage-held resources. Best-effort and idempotent; a
// failing backend close is logged, never returned.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if err := e.storage.Close(); err != nil {
			e.logger.Warn("Storage close failed", zap.Error(err))
		}
	})
}

// signaturePayload builds the canonical signing payload: the mapping id and
// the mapping entries as a JSON array of [proxy, original] pairs sorted by
// proxy. The same bytes are signed at anonymize time and verified at
// deanonymize time, including for empty mappings.
func signaturePayload(mapID string, mapping map[string]string) string {
	proxies := make([]string, 0, len(mapping))
	for proxy := range mapping {
		proxies = append(proxies, proxy)
	}
	sort.Strings(proxies)

	entries := make([][2]string, 0, len(mapping))
	for _, proxy := range proxies {
		entries = append(entries, [2]string{proxy, mapping[proxy]})
	}

	// Marshaling a slice of string pairs cannot fail.
	payload, _ := json.Marshal(entries)
	return mapID + ":" + string(payload)
}
