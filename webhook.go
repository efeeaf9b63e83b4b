package sandwich

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/qq"
	"github.com/WelcomerTeam/Sandwich-QQ/sandwichjson"
	gotils_strconv "github.com/savsgio/gotils/strconv"
	"github.com/valyala/fasthttp"
)

const (
	WebhookAppIDHeader     = "X-Bot-Appid"
	WebhookSignatureHeader = "X-Signature-Ed25519"
	WebhookTimestampHeader = "X-Signature-Timestamp"

	webhookMeTimeout = 10 * time.Second
)

var (
	ErrWebhookMissingSecret    = errors.New("webhook requires a bot secret")
	ErrWebhookInvalidSignature = errors.New("invalid webhook signature")
)

// WebhookVerifyResponse answers a webhook verification challenge.
type WebhookVerifyResponse struct {
	PlainToken string `json:"plain_token"`
	Signature  string `json:"signature"`
}

// webhookKey derives the signing key from the bot secret repeated until it
// fills an ed25519 seed.
func webhookKey(secret string) (ed25519.PrivateKey, error) {
	if secret == "" {
		return nil, ErrWebhookMissingSecret
	}

	seed := []byte(secret)
	for len(seed) < ed25519.SeedSize {
		seed = append(seed, secret...)
	}

	return ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize]), nil
}

// SignWebhookVerify returns the hex signature of eventTS+plainToken.
func SignWebhookVerify(secret, eventTS, plainToken string) (string, error) {
	key, err := webhookKey(secret)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(ed25519.Sign(key, []byte(eventTS+plainToken))), nil
}

// VerifyWebhookSignature checks the signature sent with a webhook request
// against timestamp+body.
func VerifyWebhookSignature(secret, signature, timestamp string, body []byte) error {
	key, err := webhookKey(secret)
	if err != nil {
		return err
	}

	decoded, err := hex.DecodeString(signature)
	if err != nil || len(decoded) != ed25519.SignatureSize || decoded[63]&224 != 0 {
		return ErrWebhookInvalidSignature
	}

	message := make([]byte, 0, len(timestamp)+len(body))
	message = append(message, timestamp...)
	message = append(message, body...)

	if !ed25519.Verify(key.Public().(ed25519.PublicKey), message, decoded) {
		return ErrWebhookInvalidSignature
	}

	return nil
}

func (sg *Sandwich) handleWebhook(ctx *fasthttp.RequestCtx) {
	appID := gotils_strconv.B2S(ctx.Request.Header.Peek(WebhookAppIDHeader))
	if appID == "" {
		sg.Logger.Warn().Msg("Missing X-Bot-Appid header in webhook request")
		ctx.Error("Missing X-Bot-Appid header", fasthttp.StatusForbidden)

		return
	}

	application, bot := sg.applicationByAppID(appID)
	if application == nil {
		sg.Logger.Error().Str("appId", appID).Msg("Received webhook for unknown bot")
		ctx.Error("Bot not found", fasthttp.StatusForbidden)

		return
	}

	body := ctx.PostBody()
	if len(body) == 0 {
		ctx.Error("Missing request content", fasthttp.StatusBadRequest)

		return
	}

	payload, err := qq.DecodePayload(body)
	if err != nil {
		application.Logger.Error().Err(err).Msg("Failed to decode webhook payload")
		ctx.Error("Invalid request content", fasthttp.StatusBadRequest)

		return
	}

	application.Logger.Trace().Str("payload", gotils_strconv.B2S(body)).Msg("Received webhook payload")

	if verify, ok := payload.(*qq.WebhookVerify); ok {
		application.Logger.Info().Msg("Received webhook verify request")
		sg.answerWebhookVerify(ctx, bot.Secret, verify)

		return
	}

	if sg.verifyWebhook() {
		signature := gotils_strconv.B2S(ctx.Request.Header.Peek(WebhookSignatureHeader))
		timestamp := gotils_strconv.B2S(ctx.Request.Header.Peek(WebhookTimestampHeader))

		if signature == "" || timestamp == "" {
			application.Logger.Warn().Msg("Missing signature or timestamp in webhook request")
			ctx.Error("Missing signature or timestamp", fasthttp.StatusForbidden)

			return
		}

		if err := VerifyWebhookSignature(bot.Secret, signature, timestamp, body); err != nil {
			application.Logger.Warn().Err(err).Msg("Rejected webhook request")
			ctx.Error("Invalid signature", fasthttp.StatusForbidden)

			return
		}
	}

	if dispatch, ok := payload.(*qq.Dispatch); ok {
		requestCtx, cancel := context.WithTimeout(sg.ctx, webhookMeTimeout)
		err = application.DispatchWebhook(requestCtx, dispatch)
		cancel()

		if err != nil {
			application.Logger.Warn().Err(err).Str("type", dispatch.Type).Msg("Dropping malformed webhook event")
		}
	}

	data, err := qq.EncodePayload(&qq.HTTPCallbackAck{})
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)

		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(data)
}

func (sg *Sandwich) answerWebhookVerify(ctx *fasthttp.RequestCtx, secret string, verify *qq.WebhookVerify) {
	signature, err := SignWebhookVerify(secret, verify.EventTS, verify.PlainToken)
	if err != nil {
		sg.Logger.Error().Err(err).Msg("Failed to sign webhook verify request")
		ctx.Error("Failed to sign message", fasthttp.StatusInternalServerError)

		return
	}

	data, err := sandwichjson.Marshal(WebhookVerifyResponse{
		PlainToken: verify.PlainToken,
		Signature:  signature,
	})
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)

		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(data)
}
