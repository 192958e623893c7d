package main

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/photos"
)

func waitFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "wait", Usage: "wait until face blurring has finished"},
		&cli.DurationFlag{Name: "wait-timeout", Value: 2 * time.Minute},
	}
}

func photoCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:  "photo",
		Usage: "upload stall photos and follow their processing",
		Subcommands: []*cli.Command{
			{
				Name:  "upload",
				Usage: "upload a photo; faces are blurred before it is shown",
				Flags: append([]cli.Flag{
					&cli.PathFlag{Name: "file", Required: true},
					&cli.StringFlag{Name: "stall", Usage: "stall the photo belongs to"},
					&cli.StringFlag{Name: "caption"},
					&cli.StringFlag{Name: "mime-type", Usage: "override the detected content type"},
				}, waitFlags()...),
				Action: r.withApp(func(c *cli.Context, app *application) error {
					svc, err := app.photoService()
					if err != nil {
						return err
					}
					user, err := app.requireUser()
					if err != nil {
						return err
					}
					upload, err := readUpload(c.Path("file"), c.String("mime-type"))
					if err != nil {
						return err
					}
					upload.UserID = user.ID
					upload.StallID = optionalString(c, "stall")
					upload.Caption = optionalString(c, "caption")

					photo, err := svc.Upload(c.Context, upload)
					if photo.ID != "" {
						printPhoto(app.out, photo)
					}
					if err != nil {
						return err
					}
					if !c.Bool("wait") {
						return nil
					}
					return waitAndPrint(c, app, svc, photo.ID)
				}),
			},
			{
				Name:  "status",
				Usage: "show a photo's processing status",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
				}, waitFlags()...),
				Action: r.withApp(func(c *cli.Context, app *application) error {
					svc, err := app.photoService()
					if err != nil {
						return err
					}
					if c.Bool("wait") {
						return waitAndPrint(c, app, svc, c.String("id"))
					}
					photo, err := svc.Status(c.Context, c.String("id"))
					if err != nil {
						return err
					}
					printPhoto(app.out, photo)
					return nil
				}),
			},
		},
	}
}

func waitAndPrint(c *cli.Context, app *application, svc *photos.Service, id string) error {
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("wait-timeout"))
	defer cancel()
	photo, err := svc.WaitForProcessing(ctx, id)
	if err != nil {
		return err
	}
	printPhoto(app.out, photo)
	return nil
}

func readUpload(path, mimeType string) (domain.PhotoUpload, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.PhotoUpload{}, fmt.Errorf("read photo: %w", err)
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(content)
	}
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}
	return domain.PhotoUpload{
		Filename: filepath.Base(path),
		MimeType: mimeType,
		Content:  content,
	}, nil
}
