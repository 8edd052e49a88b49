package model

import "github.com/okian/pokerank/internal/domain/types"

// Stats is the aggregate view over the store and the ledger.
type Stats struct {
	TotalVotes         int               `json:"totalVotes"`
	TotalEntities      int               `json:"totalEntities"`
	VotesToday         int               `json:"votesToday"`
	PerCategoryWinRate []CategoryWinRate `json:"perCategoryWinRate"`
}

// CategoryWinRate is the share of decided appearances a category won.
type CategoryWinRate struct {
	Type    types.Category `json:"type"`
	WinRate float64        `json:"winRate"`
	Wins    int            `json:"wins"`
	Total   int            `json:"total"`
	Color   string         `json:"color"`
}
