package handle

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gpt-proxy/api/internal/content"
)

// maxInferBody ограничивает JSON-тело: base64 раздувает 32 MiB картинок
// примерно до 43 MiB, остальное: запас на текст.
const maxInferBody = 2 * content.MaxRequestBytes

type inferResponse struct {
	Output string `json:"output"`
}

var errMissingText = errors.New(`field "text" is required`)

// decodeInfer читает ровно один JSON-объект; "text" обязателен (пустая строка допустима).
func decodeInfer(body io.Reader) (content.InferenceRequest, error) {
	var in struct {
		content.InferenceRequest
		Text *string `json:"text"`
	}
	dec := json.NewDecoder(body)
	if err := dec.Decode(&in); err != nil {
		return content.InferenceRequest{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after JSON object")
		}
		return content.InferenceRequest{}, err
	}
	if in.Text == nil {
		return content.InferenceRequest{}, errMissingText
	}
	req := in.InferenceRequest
	req.Text = *in.Text
	return req, nil
}

func (h *Handle) Infer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	req, err := decodeInfer(http.MaxBytesReader(w, r.Body, maxInferBody))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.fail(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}

	ctx, cancel := h.withDeadline(r)
	defer cancel()

	out, err := h.svc.Infer(ctx, "infer", req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inferResponse{Output: out.Text})
}
