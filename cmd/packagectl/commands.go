package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	mcpadapter "github.com/kirillkom/formpack-portal/internal/adapters/mcp"
	"github.com/kirillkom/formpack-portal/internal/config"
	"github.com/kirillkom/formpack-portal/internal/core/domain"
	"github.com/kirillkom/formpack-portal/internal/core/ports"
	"github.com/kirillkom/formpack-portal/internal/core/storagepath"
	"github.com/kirillkom/formpack-portal/internal/core/usecase"
	"github.com/kirillkom/formpack-portal/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/formpack-portal/internal/infrastructure/pdfinfo"
)

const version = "0.1.0"

type cli struct {
	out     io.Writer
	logger  *slog.Logger
	cfg     config.Config
	backend ports.PackageBackend
}

func (c *cli) query() *usecase.PackageQueryUseCase {
	return usecase.NewPackageQueryUseCase(c.backend, storagepath.New(c.cfg.StorageURLRoot))
}

func uploadFlags(fs *pflag.FlagSet) func(context.Context, *cli, []string) error {
	name := fs.StringP("name", "n", "", "package name")
	output := fs.StringP("output", "o", formatTable, "output format: table, json or yaml")
	fs.Duration("poll-interval", 0, "status poll interval (overrides POLL_INTERVAL)")

	return func(ctx context.Context, c *cli, args []string) error {
		if len(args) == 0 {
			return usageError{msg: "at least one file is required"}
		}
		if err := checkFormat(*output); err != nil {
			return err
		}
		files, err := readFiles(args)
		if err != nil {
			return err
		}

		screen := usecase.NewUploadScreen(c.backend, usecase.UploadScreenOptions{
			PollInterval:       c.cfg.PollInterval,
			PollRequestTimeout: c.cfg.PollRequestTimeout,
			NotificationTTL:    time.Hour,
			Inspector:          pdfinfo.NewInspector(c.logger),
			Logger:             c.logger,
		})
		defer screen.Close()

		id, err := screen.Submit(ctx, *name, files)
		if err != nil {
			return err
		}
		c.logger.Info("package_created", "package_id", id, "files", len(files))

		if err := screen.Wait(ctx); err != nil {
			return err
		}
		snap := screen.Snapshot()
		if err := render(c.out, *output, snap, func(w io.Writer) error { return uploadTable(w, snap) }); err != nil {
			return err
		}
		if snap.State != domain.UploadSucceeded {
			return fmt.Errorf("package %s did not complete: %s", id, snap.Error)
		}
		return nil
	}
}

func statusFlags(fs *pflag.FlagSet) func(context.Context, *cli, []string) error {
	output := fs.StringP("output", "o", formatTable, "output format: table, json or yaml")

	return func(ctx context.Context, c *cli, args []string) error {
		if len(args) != 1 {
			return usageError{msg: "expected exactly one package id"}
		}
		if err := checkFormat(*output); err != nil {
			return err
		}
		reading, err := c.query().Status(ctx, args[0])
		if err != nil {
			return err
		}
		view := statusView{PackageID: args[0], Status: reading.Text, Complete: reading.Status.IsTerminal()}
		return render(c.out, *output, view, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s\t%s\n", view.PackageID, view.Status)
			return err
		})
	}
}

type statusView struct {
	PackageID string `json:"packageId"`
	Status    string `json:"status"`
	Complete  bool   `json:"complete"`
}

func showFlags(fs *pflag.FlagSet) func(context.Context, *cli, []string) error {
	output := fs.StringP("output", "o", formatTable, "output format: table, json or yaml")
	xlsxPath := fs.String("xlsx", "", "also write the filled-out submissions to this .xlsx file")

	return func(ctx context.Context, c *cli, args []string) error {
		if len(args) != 1 {
			return usageError{msg: "expected exactly one package id"}
		}
		if err := checkFormat(*output); err != nil {
			return err
		}
		pkg, report, err := c.query().Detail(ctx, args[0])
		if err != nil {
			return err
		}
		for _, col := range report.Collisions {
			c.logger.Warn("storage_path_collision", "package_id", pkg.ID, "basename", col.Basename, "sources", col.Sources)
		}
		for _, source := range report.Unresolved {
			c.logger.Warn("storage_path_unresolved", "package_id", pkg.ID, "source", source)
		}

		if *xlsxPath != "" {
			if err := writeXLSX(*xlsxPath, *pkg); err != nil {
				return err
			}
			c.logger.Info("submissions_exported", "package_id", pkg.ID, "path", *xlsxPath)
		}
		return render(c.out, *output, pkg, func(w io.Writer) error { return packageTable(w, pkg) })
	}
}

func mcpFlags(*pflag.FlagSet) func(context.Context, *cli, []string) error {
	return func(_ context.Context, c *cli, args []string) error {
		if len(args) != 0 {
			return usageError{msg: "mcp takes no arguments"}
		}
		srv, err := mcpadapter.NewServer("formpack", version, c.query(), c.logger)
		if err != nil {
			return err
		}
		return srv.ServeStdio()
	}
}

func readFiles(paths []string) ([]domain.UploadFile, error) {
	files := make([]domain.UploadFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		files = append(files, domain.UploadFile{
			Name:        filepath.Base(path),
			ContentType: contentType,
			Data:        data,
		})
	}
	return files, nil
}

func writeXLSX(path string, pkg domain.Package) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return xlsx.WriteSubmissions(f, pkg)
}
