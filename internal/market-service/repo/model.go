package repo

import "time"

// Market é o registro persistido de um mercado de apostas em pool.
// OptionPools[i] acumula o valor apostado na opção i; TotalPool é a soma de todos.
type Market struct {
	ID            int64
	Question      string
	Options       []string
	EndTime       time.Time
	Resolved      bool
	WinningOption int
	Creator       string
	TotalPool     int64
	OptionPools   []int64
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// Clone retorna uma cópia profunda (slices e ponteiros não são compartilhados)
func (m *Market) Clone() *Market {
	c := *m
	c.Options = append([]string(nil), m.Options...)
	c.OptionPools = append([]int64(nil), m.OptionPools...)
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// betKey identifica a aposta acumulada de um usuário em uma opção
type betKey struct {
	user   string
	option int
}
