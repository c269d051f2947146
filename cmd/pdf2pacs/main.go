// pdf2pacs sends one or more PDF files to a STOW-RS service as DICOM
// instances from the command line: an encapsulated PDF per file, plus
// optional secondary-capture images of the rendered pages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Algernon72/PDF2PACS/internal/batch"
	"github.com/Algernon72/PDF2PACS/internal/config"
	"github.com/Algernon72/PDF2PACS/internal/render"
	"github.com/Algernon72/PDF2PACS/internal/stow"
)

var (
	familyName string
	givenName  string
	birthDate  string
	patientID  string

	makePreview  bool
	allPages     bool
	seriesPerPDF bool
	noRender     bool

	stowURL      string
	stowUsername string
	stowPassword string
	insecureTLS  bool
	timeoutSecs  int

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pdf2pacs [flags] file.pdf [file.pdf ...]",
	Short: "Upload PDF files to a PACS as DICOM instances over STOW-RS",
	Long: `Upload one or more PDF files to a STOW-RS service (such as Orthanc)
as a single DICOM study: one encapsulated PDF instance per file and,
unless disabled, secondary-capture images of the rendered pages.

Endpoint and descriptive defaults come from the environment (STOW_URL,
STOW_USERNAME, STUDY_DESCRIPTION, ...); flags override the endpoint.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if stowURL != "" {
			cfg.Stow.URL = stowURL
		}
		if stowUsername != "" {
			cfg.Stow.Username = stowUsername
		}
		if stowPassword != "" {
			cfg.Stow.Password = stowPassword
		}
		if insecureTLS {
			cfg.Stow.VerifyTLS = false
		}
		if timeoutSecs > 0 {
			cfg.Stow.Timeout = time.Duration(timeoutSecs) * time.Second
		}

		client := stow.NewClient(stow.Endpoint{
			URL:       cfg.Stow.URL,
			Username:  cfg.Stow.Username,
			Password:  cfg.Stow.Password,
			VerifyTLS: cfg.Stow.VerifyTLS,
			Timeout:   cfg.Stow.Timeout,
		})

		var opener render.Opener
		if !noRender && cfg.RenderingEnabled {
			opener = render.Open
		}

		orchestrator := batch.New(client, batch.Defaults{
			StudyDescription:       cfg.Defaults.StudyDescription,
			SeriesDescription:      cfg.Defaults.SeriesDescription,
			ReferringPhysicianName: cfg.Defaults.ReferringPhysicianName,
			AccessionNumber:        cfg.Defaults.AccessionNumber,
			PatientIDPrefix:        cfg.Defaults.PatientIDPrefix,
		}, opener, slog.Default())

		rep := orchestrator.Send(cmd.Context(), batch.Request{
			Sources: args,
			Patient: batch.PatientFields{
				FamilyName: familyName,
				GivenName:  givenName,
				BirthDate:  birthDate,
				PatientID:  patientID,
			},
			Options: batch.SendOptions{
				MakePreview:  makePreview,
				AllPages:     allPages,
				SeriesPerPDF: seriesPerPDF,
			},
		})

		for _, line := range rep.Log {
			fmt.Println(line)
		}
		if !rep.OK {
			return fmt.Errorf("send failed: %s", rep.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&familyName, "family", "", "patient family name")
	rootCmd.Flags().StringVar(&givenName, "given", "", "patient given name")
	rootCmd.Flags().StringVar(&birthDate, "birth", "", "patient birth date (DD/MM/YYYY)")
	rootCmd.Flags().StringVar(&patientID, "patient-id", "", "patient ID (generated when empty)")

	rootCmd.Flags().BoolVar(&makePreview, "preview", true, "send rendered page images alongside the PDF")
	rootCmd.Flags().BoolVar(&allPages, "all-pages", true, "render every page, not just the first")
	rootCmd.Flags().BoolVar(&seriesPerPDF, "series-per-pdf", true, "put each PDF in its own series")
	rootCmd.Flags().BoolVar(&noRender, "no-render", false, "disable the PDF rendering capability entirely")

	rootCmd.Flags().StringVar(&stowURL, "url", "", "STOW-RS endpoint URL (overrides STOW_URL)")
	rootCmd.Flags().StringVar(&stowUsername, "username", "", "basic auth username")
	rootCmd.Flags().StringVar(&stowPassword, "password", "", "basic auth password")
	rootCmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification")
	rootCmd.Flags().IntVar(&timeoutSecs, "timeout", 0, "request timeout in seconds")

	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
