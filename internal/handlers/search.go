package handlers

import (
	"net/http"

	"github.com/nkiryanov/phantommask/internal/handlers/render"
	"github.com/nkiryanov/phantommask/internal/logger"
	"github.com/nkiryanov/phantommask/internal/service/search"
)

func handleSearch(s searchService, l logger.Logger) http.Handler {
	type query struct {
		Type  string `json:"type" validate:"required,oneof=pharmacy mask"`
		Query string `json:"q" validate:"required"`
	}

	type result struct {
		Name      string  `json:"name"`
		Relevance float64 `json:"relevance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := newQueryParser(r)
		q := query{Type: p.String("type"), Query: p.String("q")}
		if !p.Bind(w, q) {
			return
		}

		domain, err := search.ParseDomain(q.Type)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		found, err := s.Search(r.Context(), domain, q.Query)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		res := make([]result, 0, len(found))
		for _, f := range found {
			res = append(res, result{Name: f.Name, Relevance: relevance(f.Relevance)})
		}
		render.JSON(w, res)
	})
}
