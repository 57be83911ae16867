package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/jobmatch/internal/filtering"
	"github.com/spigell/jobmatch/internal/pipeline"
	"github.com/spigell/jobmatch/internal/profile"
	"github.com/spigell/jobmatch/internal/render"
	"go.uber.org/zap"
)

const (
	PromptAnyType = "Any"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend jobs for the given skills, resume, location and job type",
	Run: func(cmd *cobra.Command, _ []string) {
		recommend(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("skills", "s", "", "comma separated skills, e.g. \"python, sql\"")
	recommendCmd.Flags().StringP("resume", "r", "", "plain text resume file to extract skills from")
	recommendCmd.Flags().StringP("location", "l", "", "preferred location")
	recommendCmd.Flags().StringP("type", "t", "", "preferred job type, e.g. Internship")
	recommendCmd.Flags().IntP("top-k", "k", 0, "candidates to retrieve (default from config)")
	recommendCmd.Flags().IntP("top-n", "n", 0, "results to show (default from config)")
	recommendCmd.Flags().BoolP("interactive", "i", false, "ask for missing skills, location and type")
	recommendCmd.Flags().Bool("hide-closed", false, "hide jobs whose application deadline has passed")
	recommendCmd.Flags().Bool("closing-soon", false, fmt.Sprintf("show only jobs closing within %d days", filtering.ClosingSoonDays))
	recommendCmd.Flags().StringP("exclude-file", "e", "", "special file with jobs to exclude. Default is unset.")
	recommendCmd.Flags().Bool("exclude-shown", false, "append shown jobs to the exclude file")

	viper.BindPFlag("exclude-file", recommendCmd.Flags().Lookup("exclude-file"))
}

func recommend(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, cfg := setup()

	logger.Debug("starting the recommendation", zap.String("version", version))

	app, err := pipeline.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bootstrapping", zap.Error(err))
	}

	req, err := requestFromFlags(cmd)
	if err != nil {
		logger.Fatal("reading flags", zap.Error(err))
	}

	if flagBool(cmd, "interactive") {
		if err := app.Init(ctx); err != nil {
			logger.Fatal("preparing the job index", zap.Error(err))
		}
		if err := askMissing(&req, jobTypes(app)); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	resp, err := app.Recommend(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrEmptyProfile):
		logger.Warn("please provide at least one skill",
			zap.String("hint", "use --skills, --resume or --interactive"),
		)
		return
	case errors.Is(err, pipeline.ErrNoResults):
		logger.Error("no recommendations", zap.Error(err))
		return
	default:
		logger.Fatal("recommending jobs", zap.Error(err))
	}

	excludeFile := viper.GetString("exclude-file")
	steps := []filtering.Filter{
		filtering.NewExcludeFile(excludeFile),
		filtering.NewHideClosed(),
		filtering.NewClosingSoon(),
	}
	if !flagBool(cmd, "hide-closed") {
		filtering.DisableByName(steps, "hide_closed", "flag not set")
	}
	if !flagBool(cmd, "closing-soon") {
		filtering.DisableByName(steps, "closing_soon", "flag not set")
	}

	now := time.Now()
	results, err := filtering.Run(ctx, filtering.Deps{Logger: logger, Now: now}, steps, resp.Results)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}

	out := cmd.OutOrStdout()
	if viper.GetBool("json") {
		err = render.JSON(out, results)
	} else {
		err = render.New(out, now).Results(results, resp.Path, app.ModelEnabled())
	}
	if err != nil {
		logger.Fatal("rendering results", zap.Error(err))
	}

	if flagBool(cmd, "exclude-shown") {
		if excludeFile == "" {
			logger.Warn("skipping exclude file update", zap.String("reason", "--exclude-file is not set"))
			return
		}

		excluded, err := filtering.ExcludedFromFile(excludeFile)
		if err != nil {
			logger.Fatal("reading exclude file", zap.Error(err))
		}
		excluded.Append(filtering.ToExcluded(results, now))
		if err := excluded.ToFile(excludeFile); err != nil {
			logger.Fatal("writing exclude file", zap.Error(err))
		}
		logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.Int("count", len(results)))
	}
}

func requestFromFlags(cmd *cobra.Command) (pipeline.Request, error) {
	flags := cmd.Flags()

	skills, _ := flags.GetString("skills")
	location, _ := flags.GetString("location")
	jobType, _ := flags.GetString("type")
	topK, _ := flags.GetInt("top-k")
	topN, _ := flags.GetInt("top-n")

	req := pipeline.Request{
		Skills:   profile.ParseList(skills),
		Location: location,
		JobType:  jobType,
		TopK:     topK,
		TopN:     topN,
	}

	if resume, _ := flags.GetString("resume"); resume != "" {
		data, err := os.ReadFile(resume)
		if err != nil {
			return req, fmt.Errorf("reading resume: %w", err)
		}
		req.ResumeText = string(data)
	}

	return req, nil
}

// askMissing prompts for every preference the flags left empty.
func askMissing(req *pipeline.Request, types []string) error {
	if len(req.Skills) == 0 && strings.TrimSpace(req.ResumeText) == "" {
		prompt := promptui.Prompt{
			Label: "Skills (comma separated)",
			Validate: func(s string) error {
				if len(profile.ParseList(s)) == 0 {
					return errors.New("at least one skill is required")
				}
				return nil
			},
		}
		answer, err := prompt.Run()
		if err != nil {
			return err
		}
		req.Skills = profile.ParseList(answer)
	}

	if strings.TrimSpace(req.Location) == "" {
		prompt := promptui.Prompt{Label: "Preferred location (empty for any)"}
		answer, err := prompt.Run()
		if err != nil {
			return err
		}
		req.Location = strings.TrimSpace(answer)
	}

	if strings.TrimSpace(req.JobType) == "" && len(types) > 0 {
		prompt := promptui.Select{
			Label: "Job type",
			Items: append([]string{PromptAnyType}, types...),
		}
		_, answer, err := prompt.Run()
		if err != nil {
			return err
		}
		if answer != PromptAnyType {
			req.JobType = answer
		}
	}

	return nil
}

// jobTypes returns the distinct job types of the loaded catalog, sorted.
func jobTypes(app *pipeline.App) []string {
	seen := make(map[string]struct{})
	types := make([]string, 0)
	for _, r := range app.Records() {
		t := strings.TrimSpace(r.Type)
		if t == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(t)]; ok {
			continue
		}
		seen[strings.ToLower(t)] = struct{}{}
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func flagBool(cmd *cobra.Command, name string) bool {
	flag := cmd.Flag(name)
	return flag != nil && strings.EqualFold(flag.Value.String(), "true")
}
