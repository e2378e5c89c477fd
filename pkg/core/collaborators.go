package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
)

// Severity grades a user-facing notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier is the user notification sink.
type Notifier interface {
	Notify(ctx context.Context, message string, severity Severity)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string, severity Severity)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, message string, severity Severity) {
	f(ctx, message, severity)
}

// LogNotifier forwards notices to a slog.Logger, mapping severities to levels.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, message string, severity Severity) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	logger.Log(ctx, level, message, "severity", string(severity))
}

// Confirmer asks the user to approve an operation that proceeds only on
// explicit consent (deleting orphans, exceeding a quota threshold).
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// AlwaysConfirm approves everything.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })

// NeverConfirm declines everything.
var NeverConfirm Confirmer = ConfirmFunc(func(context.Context, string) bool { return false })

// Quota is a storage usage estimate in bytes.
type Quota struct {
	Used  uint64
	Total uint64
}

// Ratio returns Used/Total, or 0 when Total is unknown.
func (q Quota) Ratio() float64 {
	if q.Total == 0 {
		return 0
	}
	return float64(q.Used) / float64(q.Total)
}

// QuotaEstimator reports how much of the backing storage is in use.
type QuotaEstimator interface {
	Estimate(ctx context.Context) (Quota, error)
}

// PayloadEncoder turns binary attachment content into the text payload kept
// on Attachment.Payload, and back.
type PayloadEncoder interface {
	Encode(mimeType string, data []byte) (string, error)
	Decode(payload string) (mimeType string, data []byte, err error)
}

// DataURLEncoder encodes payloads as base64 data URLs.
type DataURLEncoder struct{}

// Encode implements PayloadEncoder.
func (DataURLEncoder) Encode(mimeType string, data []byte) (string, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Decode implements PayloadEncoder.
func (DataURLEncoder) Decode(payload string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(payload, "data:")
	if !ok {
		return "", nil, fmt.Errorf("payload is not a data URL")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("payload has no data section")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return mimeType, []byte(encoded), nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("decode payload: %w", err)
	}
	return mimeType, data, nil
}
