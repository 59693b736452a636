package service

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/roulette-draw/internal/gate"
)

// Ошибки пульта розыгрыша.
var (
	ErrDrawInProgress    = errors.New("draw already in progress")
	ErrNoCampaign        = errors.New("no campaign selected")
	ErrNoParticipants    = errors.New("campaign has no participants")
	ErrNoPendingReveal   = errors.New("no such pending reveal")
	ErrDrawRejected      = errors.New("draw rejected by service")
	ErrDrawFailed        = errors.New("draw service failed")
	ErrCampaignChanged   = errors.New("campaign changed during draw")
	ErrInvalidCampaignID = errors.New("invalid campaign id")
	ErrClosed            = errors.New("controller closed")
)

// GateError возвращается, когда розыгрыш заблокирован временным окном, остатком призов или статусом кампании.
type GateError struct {
	Decision gate.Decision
}

func (e *GateError) Error() string {
	return fmt.Sprintf("draw not permitted: %s", e.Decision.Reason)
}

// ConfirmationRequiredError возвращается, когда перед розыгрышем нужно подтверждение оператора.
type ConfirmationRequiredError struct {
	Decision gate.Decision
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("operator confirmation required: %s", e.Decision.Message)
}
