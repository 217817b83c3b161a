package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// QuickOptions are the canned prompts offered by the help menu.
var QuickOptions = []string{"Hi", "Job", "Experience", "Contact Connor"}

// PrefillStore persists the text used to pre-populate the next message.
type PrefillStore interface {
	GetPrefill(ctx context.Context, clientID string) (string, error)
	SavePrefill(ctx context.Context, clientID, text string) error
	ClearPrefill(ctx context.Context, clientID string) error
}

// PrefillService keeps one prefill string per client outside the session.
type PrefillService struct {
	store    PrefillStore
	clientID string
}

func NewPrefillService(store PrefillStore, clientID string) (*PrefillService, error) {
	if store == nil {
		return nil, errors.New("usecase: prefill store must not be nil")
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("usecase: client id must not be empty")
	}
	return &PrefillService{store: store, clientID: clientID}, nil
}

// Set stores text; blank text clears the stored value.
func (p *PrefillService) Set(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		if err := p.store.ClearPrefill(ctx, p.clientID); err != nil {
			return newError(ErrorInternal, "prefill_clear_error", err)
		}
		return nil
	}
	if err := p.store.SavePrefill(ctx, p.clientID, text); err != nil {
		return newError(ErrorInternal, "prefill_write_error", err)
	}
	return nil
}

// SetQuickOption stores the n-th quick option (1-based) and returns its text.
func (p *PrefillService) SetQuickOption(ctx context.Context, n int) (string, error) {
	if n < 1 || n > len(QuickOptions) {
		return "", newError(ErrorInvalidInput, "unknown_quick_option", fmt.Errorf("option %d out of range 1-%d", n, len(QuickOptions)))
	}
	text := QuickOptions[n-1]
	if err := p.Set(ctx, text); err != nil {
		return "", err
	}
	return text, nil
}

// Take returns the stored text and clears it.
func (p *PrefillService) Take(ctx context.Context) (string, error) {
	text, err := p.store.GetPrefill(ctx, p.clientID)
	if err != nil {
		return "", newError(ErrorInternal, "prefill_read_error", err)
	}
	if text == "" {
		return "", nil
	}
	if err := p.store.ClearPrefill(ctx, p.clientID); err != nil {
		return "", newError(ErrorInternal, "prefill_clear_error", err)
	}
	return text, nil
}
