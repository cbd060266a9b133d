package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/eventhive/internal/sanitize"
	"github.com/Togather-Foundation/eventhive/internal/session"
	"github.com/Togather-Foundation/eventhive/internal/submission"
)

func addDraftFlags(cmd *cobra.Command, d *submission.Draft) {
	cmd.Flags().StringVar(&d.Title, "title", "", "event title")
	cmd.Flags().StringVar(&d.Venue, "venue", "", "event venue")
	cmd.Flags().StringVar(&d.StartDate, "start-date", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&d.EndDate, "end-date", "", "last day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&d.StartTime, "start-time", "", "start time (HH:MM)")
	cmd.Flags().StringVar(&d.EndTime, "end-time", "", "end time (HH:MM)")
	cmd.Flags().StringVar(&d.Cost, "cost", "", "ticket price; 0 or empty means free")
}

type describeView struct {
	Description string `json:"description" yaml:"description"`
	CostType    string `json:"cost_type" yaml:"cost_type"`
	Time        string `json:"time" yaml:"time"`
}

func newDescribeCommand(a *app) *cobra.Command {
	var d submission.Draft
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Generate an AI description for an event draft (admin)",
		Example: `  eventhive describe --title "Spring Fair" --venue "City Park" \
    --start-date 2026-04-01 --end-date 2026-04-02 --start-time 10:00 --end-time 12:00 --cost 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := submission.NewPipeline(a.gw, a.logger)
			desc, err := p.GenerateDescription(cmd.Context(), &d)
			if err != nil {
				return fail(session.Admin, err)
			}

			out := cmd.OutOrStdout()
			view := describeView{Description: sanitize.Text(desc), CostType: d.CostType(), Time: d.TimeRange()}
			if ok, err := writeStructured(out, a.opts.format, view); ok {
				return err
			}
			_, err = fmt.Fprintln(out, view.Description)
			return err
		},
	}
	addDraftFlags(cmd, &d)
	return cmd
}

func newCreateEventCommand(a *app) *cobra.Command {
	var (
		d           submission.Draft
		imagePath   string
		generate    bool
		idempotent  bool
		explicitKey string
	)
	cmd := &cobra.Command{
		Use:   "create-event",
		Short: "Publish a new event (admin)",
		Long: `Upload a new event with its image. With --generate-description the
description is written by the server's AI assistant first and replaces
--description.`,
		Example: `  eventhive create-event --title "Spring Fair" --venue "City Park" \
    --start-date 2026-04-01 --end-date 2026-04-02 --start-time 10:00 --end-time 12:00 \
    --cost 15 --image poster.png --generate-description`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if imagePath != "" {
				img, err := submission.LoadImage(imagePath)
				if err != nil {
					return err
				}
				d.Image = img
			}
			switch {
			case explicitKey != "":
				d.IdempotencyKey = explicitKey
			case idempotent:
				d.IdempotencyKey = submission.NewIdempotencyKey()
			}

			p := submission.NewPipeline(a.gw, a.logger)
			ctx := cmd.Context()
			if generate {
				if _, err := p.GenerateDescription(ctx, &d); err != nil {
					return fail(session.Admin, err)
				}
			}

			created, err := p.Submit(ctx, &d)
			if err != nil {
				return fail(session.Admin, err)
			}

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, a.opts.format, created); ok {
				return err
			}
			msg := created.Message
			if msg == "" {
				msg = "Event created."
			}
			if err := renderSuccess(out, msg); err != nil {
				return err
			}
			if d.IdempotencyKey != "" {
				fmt.Fprintln(out, mutedStyle.Render("Idempotency key: "+d.IdempotencyKey))
			}
			return nil
		},
	}
	addDraftFlags(cmd, &d)
	cmd.Flags().StringVar(&d.Description, "description", "", "event description")
	cmd.Flags().StringVar(&imagePath, "image", "", "path to the event image (.jpg, .jpeg or .png)")
	cmd.Flags().BoolVar(&generate, "generate-description", false, "generate the description with AI before submitting")
	cmd.Flags().BoolVar(&idempotent, "idempotent", false, "attach a fresh idempotency key to the upload")
	cmd.Flags().StringVar(&explicitKey, "idempotency-key", "", "reuse this idempotency key (e.g. when retrying)")
	return cmd
}
