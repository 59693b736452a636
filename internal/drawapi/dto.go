package drawapi

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/mmeshcher/roulette-draw/internal/ledger"
	"github.com/mmeshcher/roulette-draw/internal/model"
)

// flexID принимает идентификатор и строкой, и числом.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type participantDTO struct {
	ID            flexID `json:"id"`
	OrdinalNumber int    `json:"ordinalNumber"`
	Name          string `json:"name"`
	IsWinner      bool   `json:"isWinner"`
}

type campaignDTO struct {
	ID                 flexID               `json:"id"`
	Name               string               `json:"name"`
	Status             model.CampaignStatus `json:"status"`
	FullyDrawn         bool                 `json:"fullyDrawn"`
	ParticipationStart *time.Time           `json:"participationStart"`
	ParticipationEnd   *time.Time           `json:"participationEnd"`
	ScheduledDate      *time.Time           `json:"scheduledDate"`
	Participants       []participantDTO     `json:"participants"`
}

func (c campaignDTO) toModel() model.Campaign {
	return model.Campaign{
		ID:         string(c.ID),
		Name:       c.Name,
		Status:     c.Status,
		FullyDrawn: c.FullyDrawn,
		Window: model.TemporalWindow{
			ParticipationStart: c.ParticipationStart,
			ParticipationEnd:   c.ParticipationEnd,
			ScheduledDate:      c.ScheduledDate,
		},
	}
}

// toDetail упорядочивает участников по порядковому номеру: порядок задаёт сектора колеса.
func (c campaignDTO) toDetail() *model.CampaignDetail {
	participants := make([]model.Participant, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, model.Participant{
			ID:            string(p.ID),
			OrdinalNumber: p.OrdinalNumber,
			Name:          p.Name,
			IsWinner:      p.IsWinner,
		})
	}
	slices.SortStableFunc(participants, func(a, b model.Participant) int {
		return a.OrdinalNumber - b.OrdinalNumber
	})

	return &model.CampaignDetail{
		Campaign:     c.toModel(),
		Participants: participants,
	}
}

// prizeDTO перекрывает строковый идентификатор сырого приза гибким.
type prizeDTO struct {
	ID flexID `json:"id"`
	ledger.RawPrize
}

func (p prizeDTO) toRaw() ledger.RawPrize {
	raw := p.RawPrize
	raw.ID = string(p.ID)
	return raw
}

type winnerDTO struct {
	ID            flexID `json:"id"`
	OrdinalNumber *int   `json:"ordinalNumber"`
	Name          string `json:"name"`
}

type prizePayloadDTO struct {
	ID           flexID `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ImageRef     string `json:"imageRef"`
	DisplayOrder *int   `json:"displayOrder"`
}

type drawResultDTO struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	Winner     *winnerDTO       `json:"winner"`
	Prize      *prizePayloadDTO `json:"prize"`
	TotalSpins *int             `json:"totalSpins"`
	Angle      *float64         `json:"angle"`
}

func (d drawResultDTO) toModel() *model.DrawResult {
	res := &model.DrawResult{
		Success:    d.Success,
		Message:    d.Message,
		TotalSpins: d.TotalSpins,
		Angle:      d.Angle,
	}
	if d.Winner != nil {
		res.Winner = model.WinnerDescriptor{
			ID:            string(d.Winner.ID),
			OrdinalNumber: d.Winner.OrdinalNumber,
			Name:          d.Winner.Name,
		}
	}
	if d.Prize != nil {
		res.Prize = &model.PrizePayload{
			ID:           string(d.Prize.ID),
			Name:         d.Prize.Name,
			Description:  d.Prize.Description,
			ImageRef:     d.Prize.ImageRef,
			DisplayOrder: d.Prize.DisplayOrder,
		}
	}
	return res
}
