package main

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"content-proxy/api/internal/auth"
	"content-proxy/api/internal/billing"
	"content-proxy/api/internal/config"
	"content-proxy/api/internal/handle"
	"content-proxy/api/internal/notify"
	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/provider/aiml"
	"content-proxy/api/internal/provider/creatomate"
	"content-proxy/api/internal/provider/gemini"
	"content-proxy/api/internal/provider/openai"
	"content-proxy/api/internal/provider/pollinations"
	"content-proxy/api/internal/provider/polza"
	"content-proxy/api/internal/provider/replicate"
	"content-proxy/api/internal/provider/segmind"
	"content-proxy/api/internal/provider/stability"
	"content-proxy/api/internal/ratelimit"
	"content-proxy/api/internal/store"
	"content-proxy/api/internal/yookassa"
)

type app struct {
	db      *sql.DB
	handle  *handle.Handle
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// openDB returns nil when no database is configured.
func openDB(ctx context.Context, c *config.Config, log *zap.Logger) (*sql.DB, error) {
	dsn := c.DSN()
	if dsn == "" {
		log.Info("database not configured; auth and payment answer 500")
		return nil, nil
	}
	db, err := store.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	log.Info("db connected", zap.String("dsn", store.Summary(dsn)))
	return db, nil
}

func buildApp(ctx context.Context, c *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}
	db, err := openDB(ctx, c, log)
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.db = db
		a.closers = append(a.closers, db.Close)
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemory(c.ContactRateLimit, c.ContactRateWindow)
	if c.RedisURL != "" {
		rl, err := ratelimit.NewRedisFromURL(c.RedisURL, c.ContactRateLimit, c.ContactRateWindow)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		limiter = rl
		a.closers = append(a.closers, rl.Close)
	}

	oa := openai.New(c.OpenAIAPIKey, c.OpenAIModel, c.OpenAIImageModel)
	pz := polza.New(c.PolzaAPIKey, c.PolzaBaseURL)
	pollen := pollinations.New()
	plans := billing.Default()
	for _, p := range plans.All() {
		log.Debug("plan", zap.String("id", p.ID), zap.String("amount", p.AmountValue()))
	}

	deps := handle.Deps{
		Log:                 log,
		AIML:                aiml.New(c.AIMLAPIKey, c.AIMLBaseURL),
		Polza:               pz,
		OpenAI:              oa,
		Creatomate:          creatomate.New(c.CreatomateAPIKey, c.CreatomateTemplateID, c.CreatomateTextElement),
		Pollinations:        pollen,
		VideoEnv:            "REPLICATE_API_TOKEN",
		TextChain:           textChain(c, oa, pz),
		ImageChain:          imageChain(c, pollen),
		Checkout:            yookassa.New(c.YooKassaShopID, c.YooKassaSecretKey),
		Plans:               plans,
		Signer:              auth.NewSigner(c.TokenSecret()),
		Limiter:             limiter,
		Telegram:            notify.NewTelegram(c.TelegramBotToken, c.TelegramChatID),
		GenerateRequireAuth: c.GenerateRequireAuth,
		PaymentReturnURL:    c.PaymentReturnURL,
		PaymentBrand:        c.PaymentBrand,
	}
	if c.ReplicateAPIToken != "" {
		deps.Video = replicate.New(c.ReplicateAPIToken)
	}
	if a.db != nil {
		deps.Users = store.NewUserRepo(a.db)
		deps.Subscriptions = store.NewSubscriptionRepo(a.db)
		deps.Payments = store.NewPaymentRepo(a.db)
		deps.Generations = store.NewGenerationRepo(a.db)
	}
	a.handle = handle.New(deps)
	return a, nil
}

// textChain is OpenAI, then Gemini, then Polza; unconfigured providers are skipped.
func textChain(c *config.Config, oa *openai.Engine, pz *polza.Engine) []provider.TextGenerator {
	var chain []provider.TextGenerator
	if c.OpenAIAPIKey != "" {
		chain = append(chain, oa)
	}
	if c.GeminiAPIKey != "" {
		chain = append(chain, gemini.New(c.GeminiAPIKey, c.GeminiModel))
	}
	if c.PolzaAPIKey != "" {
		chain = append(chain, pz)
	}
	return chain
}

// imageChain is Stability, then Segmind, then the keyless Pollinations.
func imageChain(c *config.Config, pollen *pollinations.Engine) []provider.ImageGenerator {
	var chain []provider.ImageGenerator
	if c.StabilityAPIKey != "" {
		chain = append(chain, stability.New(c.StabilityAPIKey))
	}
	if c.SegmindAPIKey != "" {
		chain = append(chain, segmind.New(c.SegmindAPIKey))
	}
	return append(chain, pollen)
}
