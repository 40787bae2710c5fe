package handle

import (
	"net/http"
)

type healthResponse struct {
	Status       string `json:"status"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	HasOpenAIKey bool   `json:"has_openai_key"`
	HasGeminiKey bool   `json:"has_gemini_key"`
	StaticDir    string `json:"static_dir"`
	IndexExists  bool   `json:"index_exists"`
}

// Health никогда не падает: отсутствие ключей: это флаги, а не ошибка.
func (h *Handle) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	engs := h.svc.Engines
	resp := healthResponse{
		Status:      "ok",
		StaticDir:   h.staticDir,
		IndexExists: h.indexExists(),
	}
	if eng, err := engs.GetEngine(""); err == nil {
		resp.Provider, resp.Model = eng.Name(), eng.GetModel()
	}
	if engs.OpenAI != nil {
		resp.HasOpenAIKey = engs.OpenAI.HasKey()
	}
	if engs.Gemini != nil {
		resp.HasGeminiKey = engs.Gemini.HasKey()
	}
	writeJSON(w, http.StatusOK, resp)
}
