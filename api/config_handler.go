package api

import (
	"net/http"

	"github.com/firmlens/firmlens/internal/config"
)

// ConfigView is the running configuration with every secret removed.
type ConfigView struct {
	Store struct {
		Backend  string `json:"backend"`
		URI      string `json:"uri"`
		Database string `json:"database"`
	} `json:"store"`
	LLM struct {
		BaseURL     string  `json:"base_url"`
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
	} `json:"llm"`
	News struct {
		Provider string `json:"provider"`
		Days     int    `json:"days"`
		PageSize int    `json:"page_size"`
	} `json:"news"`
	Chat struct {
		DefaultCompany string `json:"default_company"`
		QuarterLimit   int    `json:"quarter_limit"`
		AnnualLimit    int    `json:"annual_limit"`
		NewsLimit      int    `json:"news_limit"`
	} `json:"chat"`
	Keys []config.KeyStatus `json:"keys"`
}

func newConfigView(cfg *config.Config) ConfigView {
	var v ConfigView
	v.Store.Backend = cfg.Store.Backend
	v.Store.URI = cfg.Store.URI
	v.Store.Database = cfg.Store.Database
	v.LLM.BaseURL = cfg.LLM.BaseURL
	v.LLM.Model = cfg.LLM.Model
	v.LLM.Temperature = cfg.LLM.Temperature
	v.LLM.MaxTokens = cfg.LLM.MaxTokens
	v.News.Provider = cfg.News.Provider
	v.News.Days = cfg.News.Days
	v.News.PageSize = cfg.News.PageSize
	v.Chat.DefaultCompany = cfg.Chat.DefaultCompany
	v.Chat.QuarterLimit = cfg.Chat.QuarterLimit
	v.Chat.AnnualLimit = cfg.Chat.AnnualLimit
	v.Chat.NewsLimit = cfg.Chat.NewsLimit
	v.Keys = config.CheckAPIKeys(cfg)
	return v
}

// handleGetConfig returns the running configuration. Keys are reported
// only as configured or not, with a masked preview.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newConfigView(s.cfg))
}
