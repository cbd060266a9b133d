package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventhive/internal/gateway"
	"github.com/Togather-Foundation/eventhive/internal/problem"
	"github.com/Togather-Foundation/eventhive/internal/session"
)

const (
	GenerateDescriptionPath = "/api/admin/generate-description/"
	CreateEventPath         = "/api/admin/events/"

	// IdempotencyKeyHeader carries Draft.IdempotencyKey.
	IdempotencyKeyHeader = "Idempotency-Key"
)

// Created is the server's acknowledgement of a new event. Navigation based on
// Redirect is left to the caller.
type Created struct {
	ID       gateway.Scalar `json:"id,omitempty" yaml:"id,omitempty"`
	Message  string         `json:"message" yaml:"message"`
	Redirect string         `json:"redirect,omitempty" yaml:"redirect,omitempty"`
}

type describeRequest struct {
	Title     string `json:"title"`
	Venue     string `json:"venue"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Time      string `json:"time"`
	CostType  string `json:"cost_type"`
}

type describeResponse struct {
	Description string `json:"description"`
}

// Pipeline runs the admin event-creation calls.
type Pipeline struct {
	gw       gateway.Doer
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewPipeline creates a pipeline that sends requests through gw.
func NewPipeline(gw gateway.Doer, logger zerolog.Logger) *Pipeline {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// notblank is registered at construction and cannot fail.
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	return &Pipeline{
		gw:       gw,
		validate: v,
		logger:   logger.With().Str("component", "submission").Logger(),
	}
}

// MissingFields lists the wire names of required scheduling fields that are
// blank. It never touches the network.
func (p *Pipeline) MissingFields(d *Draft) []string {
	err := p.validate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

// GenerateDescription asks the server for an AI-written description and, on
// success, replaces d.Description. Other draft fields are left untouched.
func (p *Pipeline) GenerateDescription(ctx context.Context, d *Draft) (string, error) {
	if missing := p.MissingFields(d); len(missing) > 0 {
		return "", problem.IncompleteDraft(missing...)
	}

	var resp describeResponse
	err := p.gw.Do(ctx, gateway.Request{
		Domain: session.Admin,
		Method: http.MethodPost,
		Path:   GenerateDescriptionPath,
		JSON: describeRequest{
			Title:     d.Title,
			Venue:     d.Venue,
			StartDate: d.StartDate,
			EndDate:   d.EndDate,
			Time:      d.TimeRange(),
			CostType:  d.CostType(),
		},
	}, &resp)
	if err != nil {
		return "", problem.Normalize(fmt.Errorf("generate description: %w", err))
	}

	d.Description = resp.Description
	p.logger.Debug().Int("length", len(resp.Description)).Msg("description generated")
	return resp.Description, nil
}

// Submit uploads d as a new event. A draft without an image fails before any
// encoding or network activity.
func (p *Pipeline) Submit(ctx context.Context, d *Draft) (Created, error) {
	if d.Image == nil || len(d.Image.Data) == 0 {
		return Created{}, problem.MissingImage()
	}

	body, contentType, err := encodeMultipart(d)
	if err != nil {
		return Created{}, problem.Normalize(fmt.Errorf("encode event: %w", err))
	}

	req := gateway.Request{
		Domain:      session.Admin,
		Method:      http.MethodPost,
		Path:        CreateEventPath,
		Body:        body,
		ContentType: contentType,
	}
	if d.IdempotencyKey != "" {
		req.Header = http.Header{IdempotencyKeyHeader: {d.IdempotencyKey}}
	}

	var created Created
	if err := p.gw.Do(ctx, req, &created); err != nil {
		return Created{}, problem.Normalize(fmt.Errorf("create event: %w", err))
	}

	p.logger.Info().Str("title", d.Title).Str("redirect", created.Redirect).Msg("event submitted")
	return created, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMultipart(d *Draft) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"title", d.Title},
		{"venue", d.Venue},
		{"start_date", d.StartDate},
		{"end_date", d.EndDate},
		{"time", d.TimeRange()},
		{"cost_type", d.CostType()},
		{"description", d.Description},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	contentType := d.Image.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(d.Image.Data)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoteEscaper.Replace(d.Image.Filename)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(d.Image.Data); err != nil {
		return nil, "", fmt.Errorf("write image: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
