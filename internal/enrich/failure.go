// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"errors"
	"net"

	"github.com/pdiddy/protocol-analyzer/internal/ai"
	"github.com/pdiddy/protocol-analyzer/internal/regulatory"
	"github.com/pdiddy/protocol-analyzer/internal/translate"
)

// Failure reasons recorded in EnrichedDrugRecord.Failures.
const (
	ReasonTimeout          = "timeout"
	ReasonCancelled        = "cancelled"
	ReasonNetwork          = "network"
	ReasonMalformed        = "malformed"
	ReasonEmpty            = "empty"
	ReasonContentBlocked   = "content_blocked"
	ReasonUnexpectedStatus = "unexpected_status"
	ReasonNotConfigured    = "not_configured"
	ReasonPanic            = "panic"
	ReasonOther            = "error"
)

var (
	// errPanic marks a recovered panic.
	errPanic = errors.New("panic")

	errNotConfigured = errors.New("not configured")
	errEmptyName     = errors.New("resolver returned an empty name")
)

// classifyFailure maps an adapter error to a stable reason.
func classifyFailure(err error) string {
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errPanic):
		return ReasonPanic
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCancelled
	case errors.Is(err, ai.ErrContentBlocked):
		return ReasonContentBlocked
	case errors.Is(err, ai.ErrMalformedResponse):
		return ReasonMalformed
	case errors.Is(err, ai.ErrEmptyResponse), errors.Is(err, translate.ErrEmptyTranslation), errors.Is(err, errEmptyName):
		return ReasonEmpty
	case errors.Is(err, ai.ErrMissingAPIKey), errors.Is(err, translate.ErrMissingAPIKey), errors.Is(err, errNotConfigured):
		return ReasonNotConfigured
	case errors.Is(err, regulatory.ErrUnexpectedStatus):
		return ReasonUnexpectedStatus
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetwork
	default:
		return ReasonOther
	}
}
