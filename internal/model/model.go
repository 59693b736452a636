// Package model содержит доменные сущности розыгрыша призов (рулетки).
package model

import "time"

// Participant описывает участника розыгрыша. Порядок по OrdinalNumber задаёт сектор колеса.
type Participant struct {
	ID            string `json:"id"`
	OrdinalNumber int    `json:"ordinalNumber"`
	Name          string `json:"name"`
	IsWinner      bool   `json:"isWinner"`
}

// PrizeStatus описывает статус приза.
type PrizeStatus string

const (
	PrizeStatusPending PrizeStatus = "pendiente"
	PrizeStatusDrawn   PrizeStatus = "sorteado"
)

// Prize описывает приз в нормализованном виде: единый текущий остаток и снимок начального.
type Prize struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	ImageRef     string      `json:"imageRef,omitempty"`
	DisplayOrder int         `json:"displayOrder"`
	InitialStock int         `json:"initialStock"`
	Current      int         `json:"current"`
	Awarded      bool        `json:"awarded"`
	Inactive     bool        `json:"inactive"`
	Disabled     bool        `json:"disabled"`
	Status       PrizeStatus `json:"status,omitempty"`
}

// CampaignStatus описывает статус кампании розыгрыша.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusFinished  CampaignStatus = "finished"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// TemporalWindow содержит настроенные временные границы кампании. Любая граница может отсутствовать.
type TemporalWindow struct {
	ParticipationStart *time.Time `json:"participationStart,omitempty"`
	ParticipationEnd   *time.Time `json:"participationEnd,omitempty"`
	ScheduledDate      *time.Time `json:"scheduledDate,omitempty"`
}

// Campaign описывает кампанию розыгрыша.
type Campaign struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Status     CampaignStatus `json:"status"`
	FullyDrawn bool           `json:"fullyDrawn"`
	Window     TemporalWindow `json:"window"`
}

// CampaignDetail содержит кампанию и упорядоченный список её участников.
type CampaignDetail struct {
	Campaign
	Participants []Participant `json:"participants"`
}

// WinnerDescriptor описывает победителя так, как его вернул сервис розыгрыша.
type WinnerDescriptor struct {
	ID            string `json:"id,omitempty"`
	OrdinalNumber *int   `json:"ordinalNumber,omitempty"`
	Name          string `json:"name,omitempty"`
}

// PrizePayload описывает (возможно неполные) данные приза из ответа сервиса розыгрыша.
type PrizePayload struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	ImageRef     string `json:"imageRef,omitempty"`
	DisplayOrder *int   `json:"displayOrder,omitempty"`
}

// DrawResult описывает результат одного вызова розыгрыша.
type DrawResult struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message,omitempty"`
	Winner     WinnerDescriptor `json:"winner"`
	Prize      *PrizePayload    `json:"prize,omitempty"`
	TotalSpins *int             `json:"totalSpins,omitempty"`
	Angle      *float64         `json:"angle,omitempty"`
}

// SpinState содержит текущий угол колеса. CurrentHeadingDegrees никогда не уменьшается.
type SpinState struct {
	CurrentHeadingDegrees float64 `json:"currentHeadingDegrees"`
	IsAnimating           bool    `json:"isAnimating"`
}

// PendingWinnerReveal описывает показ победителя, ожидающий подтверждения оператора.
type PendingWinnerReveal struct {
	ID          string      `json:"id"`
	CampaignID  string      `json:"campaignId"`
	Name        string      `json:"name"`
	Participant Participant `json:"participant"`
	Prize       *Prize      `json:"prize,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Типы событий, рассылаемых подписчикам.
const (
	EventSpin            = "spin"
	EventReveal          = "reveal"
	EventRevealDismissed = "reveal_dismissed"
	EventState           = "state"
	EventError           = "error"
)

// Event описывает событие для интерфейса оператора.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
