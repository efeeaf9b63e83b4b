package sandwich

import (
	"time"

	"github.com/WelcomerTeam/Sandwich-QQ/sandwichjson"
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// WebhookPaths are the routes the platform may deliver webhook events to.
var WebhookPaths = []string{"/qq", "/qq/webhook", "/qq/webhook/"}

// RestResponse is the envelope of every status API response.
type RestResponse struct {
	Success  bool        `json:"success"`
	Response interface{} `json:"response,omitempty"`
	Error    string      `json:"error,omitempty"`
}

type SandwichStatus struct {
	Version      string                `json:"version"`
	Uptime       string                `json:"uptime"`
	Applications []ApplicationSnapshot `json:"applications"`
}

// NewRouter routes the status, metrics and webhook endpoints.
func (sg *Sandwich) NewRouter() *router.Router {
	r := router.New()
	r.RedirectTrailingSlash = false

	r.GET("/status", sg.handleStatus)
	r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	for _, path := range WebhookPaths {
		r.POST(path, sg.handleWebhook)
	}

	return r
}

// HandleRequest logs and serves a single request.
func (sg *Sandwich) HandleRequest(handler fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()

		handler(ctx)

		sg.Logger.Debug().
			Str("remoteAddr", ctx.RemoteAddr().String()).
			Bytes("method", ctx.Method()).
			Bytes("path", ctx.Path()).
			Int("status", ctx.Response.StatusCode()).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	}
}

func (sg *Sandwich) setupHTTP() {
	host := sg.Configuration.HTTP.Host
	if sg.Options.HTTPHost != "" {
		host = sg.Options.HTTPHost
	}

	sg.server = &fasthttp.Server{
		Name:    "Sandwich-QQ/" + Version,
		Handler: sg.HandleRequest(sg.NewRouter().Handler),
	}

	go func() {
		sg.Logger.Info().Msgf("Serving http at %s", host)

		err := sg.server.ListenAndServe(host)
		if err != nil {
			sg.Logger.Error().Str("host", host).Err(err).Msg("Failed to serve http server")
		}
	}()
}

func (sg *Sandwich) handleStatus(ctx *fasthttp.RequestCtx) {
	status := SandwichStatus{
		Version:      Version,
		Applications: make([]ApplicationSnapshot, 0, len(sg.Configuration.Bots)),
	}

	if !sg.StartTime.IsZero() {
		status.Uptime = time.Since(sg.StartTime).Round(time.Second).String()
	}

	for _, application := range sg.Applications() {
		status.Applications = append(status.Applications, application.Snapshot())
	}

	writeResponse(ctx, fasthttp.StatusOK, RestResponse{Success: true, Response: status})
}

func writeResponse(ctx *fasthttp.RequestCtx, statusCode int, response RestResponse) {
	data, err := sandwichjson.Marshal(response)
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)

		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(statusCode)
	ctx.SetBody(data)
}
