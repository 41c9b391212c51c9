package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// ── GraphQL hero API ────────────────────────────────────────
// Plain HTTP POSTs of query documents; no subscription machinery needed for
// read-only hero lookups.

const heroPageSize = 200

const heroFields = `
	id
	owner { id }
	statGenes
	visualGenes
	generation
	level
	stamina
	profession
	gardening
	currentQuest
	equippedPet { id profession profBonus }
`

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

func (c *Client) graphql(ctx context.Context, query string, vars map[string]any, out any) error {
	body, _ := json.Marshal(gqlRequest{Query: query, Variables: vars})

	return withRetry(ctx, "graphql", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.GraphQLURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("graphql http %d", resp.StatusCode)
		}

		var envelope struct {
			Data   json.RawMessage `json:"data"`
			Errors []gqlError      `json:"errors"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return Permanent(fmt.Errorf("graphql unmarshal: %w", err))
		}
		if len(envelope.Errors) > 0 {
			return Permanent(fmt.Errorf("graphql: %s", envelope.Errors[0].Message))
		}
		return json.Unmarshal(envelope.Data, out)
	})
}

// rawHero matches the API shape; owner arrives as a nested object.
type rawHero struct {
	ID           json.Number         `json:"id"`
	Owner        struct{ ID string } `json:"owner"`
	StatGenes    string              `json:"statGenes"`
	VisualGenes  string              `json:"visualGenes"`
	Generation   int                 `json:"generation"`
	Level        int                 `json:"level"`
	Stamina      int                 `json:"stamina"`
	Profession   string              `json:"profession"`
	Gardening    int                 `json:"gardening"`
	CurrentQuest string              `json:"currentQuest"`
	EquippedPet  *rawPet             `json:"equippedPet"`
}

// rawPet is the equipped pet's bonus payload. Only a gardening-profession
// pet boosts garden yield; other professions are ignored here.
type rawPet struct {
	ID         json.Number `json:"id"`
	Profession string      `json:"profession"`
	ProfBonus  int         `json:"profBonus"` // percent
}

func (r rawHero) petBonus() int {
	if r.EquippedPet == nil || !strings.EqualFold(r.EquippedPet.Profession, "gardening") {
		return 0
	}
	return r.EquippedPet.ProfBonus
}

func (r rawHero) toHero() Hero {
	id, _ := r.ID.Int64()
	return Hero{
		ID:           id,
		Owner:        strings.ToLower(r.Owner.ID),
		StatGenes:    r.StatGenes,
		VisualGenes:  r.VisualGenes,
		Generation:   r.Generation,
		Level:        r.Level,
		Stamina:      r.Stamina,
		MaxStamina:   25 + r.Level/2, // stamina cap grows with level
		Gardening:    r.Gardening,
		CurrentQuest: strings.ToLower(r.CurrentQuest),
		PetBonus:     r.petBonus(),
	}
}

// GetHeroByID fetches a single hero record.
func (c *Client) GetHeroByID(ctx context.Context, id int64) (*Hero, error) {
	var data struct {
		Hero *rawHero `json:"hero"`
	}
	q := fmt.Sprintf(`query($id: ID!) { hero(id: $id) { %s } }`, heroFields)
	if err := c.graphql(ctx, q, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Hero == nil {
		return nil, Permanent(fmt.Errorf("hero %d not found", id))
	}
	h := data.Hero.toHero()
	return &h, nil
}

// GetAllHeroesByOwner pages through the owner's heroes, 200 at a time, until
// a short page. Pages can overlap when the set mutates mid-pagination, so
// results are deduplicated by hero ID.
func (c *Client) GetAllHeroesByOwner(ctx context.Context, owner string) ([]Hero, error) {
	q := fmt.Sprintf(`query($owner: String!, $first: Int!, $skip: Int!) {
		heroes(where: {owner: $owner}, first: $first, skip: $skip, orderBy: id) { %s }
	}`, heroFields)

	seen := make(map[int64]bool)
	var heroes []Hero
	for skip := 0; ; skip += heroPageSize {
		var data struct {
			Heroes []rawHero `json:"heroes"`
		}
		vars := map[string]any{"owner": strings.ToLower(owner), "first": heroPageSize, "skip": skip}
		if err := c.graphql(ctx, q, vars, &data); err != nil {
			return nil, err
		}
		for _, r := range data.Heroes {
			h := r.toHero()
			if seen[h.ID] {
				continue
			}
			seen[h.ID] = true
			heroes = append(heroes, h)
		}
		if len(data.Heroes) < heroPageSize {
			break
		}
	}
	log.Debug().Str("owner", abbrev(owner)).Int("heroes", len(heroes)).Msg("fetched heroes")
	return heroes, nil
}
