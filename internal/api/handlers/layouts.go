package handlers

import (
	"net/http"

	"github.com/dvloznov/statement-reconciler/internal/api/middleware"
	"github.com/dvloznov/statement-reconciler/internal/layout"
)

type layoutSummary struct {
	Name     string   `json:"name"`
	BankID   string   `json:"bank_id,omitempty"`
	Keywords []string `json:"keywords"`
}

// ListLayouts handles GET /api/layouts
func ListLayouts(reg *layout.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		layouts := reg.List()
		out := make([]layoutSummary, 0, len(layouts))
		for _, l := range layouts {
			out = append(out, layoutSummary{Name: l.Name, BankID: l.BankID, Keywords: l.Keywords})
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"layouts": out,
			"count":   len(out),
		})
	}
}
