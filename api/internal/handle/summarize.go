package handle

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"gpt-proxy/api/internal/content"
	"gpt-proxy/api/internal/pdftext"
)

const (
	uploadField = "file"
	// запас на заголовки multipart и прочие поля формы
	maxUploadBody = content.MaxRequestBytes + 1<<20
)

var (
	errMissingFile = errors.New("missing file")
	errNotPDF      = errors.New("file is not a PDF")
)

type summaryResponse struct {
	Summary string `json:"summary"`
}

// SummarizePDF принимает multipart-поле "file". Тип части проверяется до
// чтения её содержимого, размер ограничен MaxRequestBytes.
func (h *Handle) SummarizePDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data with a PDF in field \"file\"")
		return
	}

	data, err := readPDFPart(mr)
	switch {
	case errors.Is(err, errMissingFile):
		writeError(w, http.StatusBadRequest, "missing file")
		return
	case errors.Is(err, errNotPDF):
		writeError(w, http.StatusBadRequest, "file must be a PDF")
		return
	case err != nil:
		var mbe *http.MaxBytesError
		if errors.Is(err, content.ErrPayloadTooLarge) || errors.As(err, &mbe) {
			h.fail(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, "bad multipart body: "+err.Error())
		return
	}

	ctx, cancel := h.withDeadline(r)
	defer cancel()

	out, err := h.svc.SummarizePDF(ctx, "summarize_pdf", data, r.URL.Query().Get("llm_name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Summary: out.Text})
}

func readPDFPart(mr *multipart.Reader) ([]byte, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errMissingFile
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}
		defer part.Close()

		if !pdftext.AcceptContentType(part.Header.Get("Content-Type")) {
			return nil, errNotPDF
		}

		data, err := io.ReadAll(io.LimitReader(part, content.MaxRequestBytes+1))
		if err != nil {
			return nil, err
		}
		if len(data) > content.MaxRequestBytes {
			return nil, content.ErrPayloadTooLarge
		}
		if len(data) == 0 {
			return nil, errMissingFile
		}
		return data, nil
	}
}
