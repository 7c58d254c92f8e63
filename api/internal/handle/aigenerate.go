package handle

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"content-proxy/api/internal/apierr"
	"content-proxy/api/internal/auth"
	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/store"
	"content-proxy/api/internal/util"
)

const (
	contentSystemPrompt = "Ты помощник для создания качественного контента на русском языке."
	presentationSuffix  = ", professional presentation style, clean design, high quality"

	defaultSlides = 5
	maxSlides     = 10
	slideWorkers  = 3
)

type aiGenerateRequest struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
	Slides int    `json:"slides"`
}

type slide struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

type generated struct {
	ContentURL string
	ID         string
	Provider   string
	Slides     []slide
}

// AIGenerate produces text, images, presentations or short videos, falling
// back through the configured providers.
func (h *Handle) AIGenerate(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action == "" {
		action = "generate"
	}
	if r.Method != http.MethodPost || action != "generate" {
		writeError(w, http.StatusMethodNotAllowed, "Метод не поддерживается")
		return
	}

	var userID int64
	if h.GenerateRequireAuth {
		claims, err := h.verify(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Unauthorized"})
			return
		}
		userID = claims.UserID
	}

	var req aiGenerateRequest
	if err := decodeBody(r, &req); err != nil {
		h.failGenerate(w, r, err)
		return
	}
	if req.Type == "" {
		req.Type = "text"
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		h.failGenerate(w, r, apierr.Invalid("Необходимо указать prompt"))
		return
	}

	var (
		out generated
		err error
	)
	switch req.Type {
	case "video":
		out, err = h.generateVideo(r, prompt)
	case "text":
		out, err = h.generateText(r, prompt)
	case "image", "presentation_image":
		out, err = h.generateSlideImage(r, prompt)
	case "presentation":
		out, err = h.generatePresentation(r, prompt, req.Slides)
	default:
		err = apierr.Invalid("Неизвестный тип контента")
	}
	if err != nil {
		h.failGenerate(w, r, err)
		return
	}
	if out.ID == "" {
		out.ID = uuid.NewString()
	}

	h.journalStart(r.Context(), store.Generation{
		UserID: userID, Function: "ai-generate", Provider: out.Provider, Kind: req.Type,
		TaskID: out.ID, Status: statusCompleted, URL: out.ContentURL, Prompt: prompt,
	})

	body := map[string]any{
		"success":       true,
		"content_url":   out.ContentURL,
		"generation_id": out.ID,
		"type":          req.Type,
	}
	if out.Slides != nil {
		body["slides"] = out.Slides
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handle) failGenerate(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := apierr.Translate(err)
	logFailure(r.Context(), code, err)
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}

func (h *Handle) generateVideo(r *http.Request, prompt string) (generated, error) {
	if h.Video == nil {
		return generated{}, apierr.NotConfigured(util.FirstNonEmpty(h.VideoEnv, "REPLICATE_API_TOKEN"))
	}
	still := h.Pollinations.URL(prompt, 1024, 576)
	st, err := h.Video.GenerateVideo(r.Context(), prompt, still)
	if err != nil {
		return generated{}, err
	}
	return generated{ContentURL: st.URL, ID: st.ID, Provider: "replicate"}, nil
}

func (h *Handle) generateText(r *http.Request, prompt string) (generated, error) {
	res, name, err := provider.FirstText(r.Context(), logger(r.Context()), provider.TextRequest{
		Prompt:       prompt,
		SystemPrompt: contentSystemPrompt,
		MaxTokens:    2000,
		Temperature:  0.7,
	}, h.TextChain...)
	if err != nil {
		return generated{}, err
	}
	return generated{ContentURL: res.Text, ID: res.ID, Provider: name}, nil
}

func (h *Handle) generateSlideImage(r *http.Request, prompt string) (generated, error) {
	res, name, err := provider.FirstImage(r.Context(), logger(r.Context()), provider.ImageRequest{
		Prompt: prompt + presentationSuffix,
	}, h.ImageChain...)
	if err != nil {
		return generated{}, err
	}
	return generated{ContentURL: res.DataURL(), ID: res.ID, Provider: name}, nil
}

// generatePresentation asks the text chain for an outline, then draws every slide.
func (h *Handle) generatePresentation(r *http.Request, prompt string, n int) (generated, error) {
	switch {
	case n <= 0:
		n = defaultSlides
	case n > maxSlides:
		n = maxSlides
	}
	ctx := r.Context()
	outline, name, err := provider.FirstText(ctx, logger(ctx), provider.TextRequest{
		Prompt: fmt.Sprintf("Составь план презентации из %d слайдов на тему: %s. "+
			`Ответь только JSON-массивом объектов {"title": "...", "description": "..."} без пояснений.`, n, prompt),
		SystemPrompt: contentSystemPrompt,
		MaxTokens:    2000,
		Temperature:  0.7,
	}, h.TextChain...)
	if err != nil {
		return generated{}, err
	}
	slides := parseOutline(outline.Text, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(slideWorkers)
	for i := range slides {
		g.Go(func() error {
			s := &slides[i]
			img, _, err := provider.FirstImage(gctx, logger(ctx), provider.ImageRequest{
				Prompt: s.Title + ": " + s.Description + presentationSuffix,
			}, h.ImageChain...)
			if err != nil {
				return fmt.Errorf("slide %d: %w", i+1, err)
			}
			s.ImageURL = img.DataURL()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return generated{}, err
	}
	return generated{ContentURL: slides[0].ImageURL, ID: outline.ID, Provider: name, Slides: slides}, nil
}

var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// parseOutline reads a JSON slide list, falling back to one slide per line.
// The result always has exactly n slides.
func parseOutline(text string, n int) []slide {
	var slides []slide
	clean := util.StripCodeFences(text)
	if err := json.Unmarshal([]byte(clean), &slides); err != nil {
		slides = slides[:0]
		for _, line := range strings.Split(clean, "\n") {
			line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
			if line == "" {
				continue
			}
			title, desc, _ := strings.Cut(line, ":")
			slides = append(slides, slide{Title: strings.TrimSpace(title), Description: strings.TrimSpace(desc)})
		}
	}

	out := make([]slide, 0, n)
	for _, s := range slides {
		if len(out) == n {
			break
		}
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		out = append(out, slide{Title: s.Title, Description: s.Description})
	}
	for len(out) < n {
		out = append(out, slide{Title: fmt.Sprintf("Слайд %d", len(out)+1)})
	}
	return out
}

func (h *Handle) verify(r *http.Request) (auth.Claims, error) {
	if h.Signer == nil {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	token := util.FirstNonEmpty(userToken(r), strings.TrimSpace(r.Header.Get("X-Auth-Token")))
	return h.Signer.Verify(token)
}
