package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/text2quiz/text2quiz/internal/pipeline"
	"github.com/text2quiz/text2quiz/internal/progress"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "text2quiz",
	Short: "Convert documents into educational quizzes",
	RunE: func(cmd *cobra.Command, args []string) error {
		flagTUI = true
		return runGenerate(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("text2quiz %s\n", Version)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a quiz from a document, URL, or text file",
	RunE:  runGenerate,
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract text from a document without generating a quiz",
	RunE:  runExtract,
}

var (
	flagInput         string
	flagOutput        string
	flagQuestions     int
	flagDifficulty    string
	flagLanguage      string
	flagOCRLang       string
	flagScanThreshold int
	flagModel         string
	flagReview        bool
	flagVerbose       bool
	flagTUI           bool
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(publishCmd)

	generateCmd.Flags().StringVarP(&flagInput, "input", "i", "", "Source document (PDF path, image path, URL, or text file)")
	generateCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output file path (JSON)")
	generateCmd.Flags().IntVarP(&flagQuestions, "questions", "q", 0, "Number of questions (0 = derive from document length)")
	generateCmd.Flags().StringVarP(&flagDifficulty, "difficulty", "d", "", "Quiz difficulty: easy, medium, hard (empty = derive from document length)")
	generateCmd.Flags().StringVarP(&flagLanguage, "language", "l", "", "Language for questions and answers (default español)")
	generateCmd.Flags().StringVar(&flagOCRLang, "ocr-lang", "", "Tesseract language code for scanned documents (default spa)")
	generateCmd.Flags().IntVar(&flagScanThreshold, "scan-threshold", 0, "Characters per page below which a PDF is treated as scanned (default 50)")
	generateCmd.Flags().StringVarP(&flagModel, "model", "m", "haiku", "Question generation model: haiku, sonnet")
	generateCmd.Flags().BoolVarP(&flagReview, "review", "r", false, "Review the generated quiz and revise it if issues are found")
	generateCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable detailed logging")
	generateCmd.Flags().BoolVarP(&flagTUI, "tui", "t", false, "Interactive setup wizard for generation options")

	extractCmd.Flags().StringVarP(&flagInput, "input", "i", "", "Source document (PDF path, image path, URL, or text file)")
	extractCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output file path (plain text; empty = stdout)")
	extractCmd.Flags().StringVar(&flagOCRLang, "ocr-lang", "", "Tesseract language code for scanned documents (default spa)")
	extractCmd.Flags().IntVar(&flagScanThreshold, "scan-threshold", 0, "Characters per page below which a PDF is treated as scanned (default 50)")
	extractCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable detailed logging")
}

func Execute() error {
	return rootCmd.Execute()
}

func runGenerate(cmd *cobra.Command, args []string) error {
	// Run interactive setup if requested
	if flagTUI {
		if err := runInteractiveSetup(); err != nil {
			return err
		}
	}

	if flagInput == "" {
		return fmt.Errorf("--input (-i) is required")
	}

	if flagDifficulty != "" {
		validDifficulties := map[string]bool{"easy": true, "medium": true, "hard": true}
		if !validDifficulties[flagDifficulty] {
			return fmt.Errorf("invalid difficulty %q: must be easy, medium, or hard", flagDifficulty)
		}
	}

	if flagQuestions < 0 || flagQuestions > 50 {
		return fmt.Errorf("invalid question count %d: must be between 1 and 50 (0 = auto)", flagQuestions)
	}

	validModels := map[string]bool{"haiku": true, "sonnet": true}
	if !validModels[flagModel] {
		return fmt.Errorf("invalid model %q: must be haiku or sonnet", flagModel)
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("missing required environment variable ANTHROPIC_API_KEY")
	}

	opts := pipeline.Options{
		Input:         flagInput,
		Output:        flagOutput,
		Questions:     flagQuestions,
		Difficulty:    flagDifficulty,
		Language:      flagLanguage,
		OCRLanguage:   flagOCRLang,
		ScanThreshold: flagScanThreshold,
		Model:         flagModel,
		Review:        flagReview,
		Verbose:       flagVerbose,
	}

	// Wire up progress bar when not in verbose mode
	if !flagVerbose {
		r := progress.NewBarRenderer(os.Stdout)
		defer r.Finish()
		opts.OnProgress = r.Handle
	}

	return pipeline.Run(cmd.Context(), opts)
}

func runExtract(cmd *cobra.Command, args []string) error {
	if flagInput == "" {
		return fmt.Errorf("--input (-i) is required")
	}

	opts := pipeline.Options{
		Input:         flagInput,
		Output:        flagOutput,
		OCRLanguage:   flagOCRLang,
		ScanThreshold: flagScanThreshold,
		ExtractOnly:   true,
		Verbose:       flagVerbose,
	}

	if !flagVerbose && flagOutput != "" {
		r := progress.NewBarRenderer(os.Stdout)
		defer r.Finish()
		opts.OnProgress = r.Handle
	}

	return pipeline.Run(cmd.Context(), opts)
}
