package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/rules"
	"github.com/coaching-health-scorer/internal/service"
)

type scoreOptions struct {
	answersPath string
	rulesPath   string
	policy      string
	parallelism int
}

func (o *scoreOptions) addFlags(cmd *cobra.Command, rulesFlag string) {
	cmd.Flags().StringVar(&o.answersPath, "answers", "", "JSON file holding an array of answers")
	cmd.Flags().StringVar(&o.rulesPath, rulesFlag, "", "rule table file (defaults to the embedded tables)")
	cmd.Flags().StringVar(&o.policy, "policy", string(domain.UNMATCHED_WARN), "unmatched answer policy: ignore, warn or error")
	_ = cmd.MarkFlagRequired("answers")
}

func (o *scoreOptions) unmatchedPolicy() (domain.UnmatchedAnswerPolicy, error) {
	p := domain.UnmatchedAnswerPolicy(o.policy)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid policy %q", o.policy)
	}
	return p, nil
}

func newNAQCmd(root *rootOptions) *cobra.Command {
	opts := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "naq",
		Short: "Score NAQ body-system sections from an answers file",
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := opts.unmatchedPolicy()
			if err != nil {
				return err
			}
			naqRules, err := rules.LoadNAQ(opts.rulesPath)
			if err != nil {
				return err
			}
			answers, err := readAnswers(opts.answersPath)
			if err != nil {
				return err
			}

			result, err := service.NewNAQEngine(root.logger, naqRules, policy).Score(answers)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	opts.addFlags(cmd, "naq-rules")
	return cmd
}

func newMicronutrientsCmd(root *rootOptions) *cobra.Command {
	opts := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "micronutrients",
		Short: "Score the micronutrient risk of every nutrient from an answers file",
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := opts.unmatchedPolicy()
			if err != nil {
				return err
			}
			microRules, err := rules.LoadMicronutrients(opts.rulesPath)
			if err != nil {
				return err
			}
			answers, err := readAnswers(opts.answersPath)
			if err != nil {
				return err
			}

			engine := service.NewMicronutrientEngine(root.logger, microRules, policy, opts.parallelism)
			result, err := engine.Score(answers)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	opts.addFlags(cmd, "micronutrient-rules")
	cmd.Flags().IntVar(&opts.parallelism, "parallelism", 4, "nutrients scored concurrently")
	return cmd
}

func readAnswers(path string) ([]domain.Answer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading answers: %w", err)
	}
	var answers []domain.Answer
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("parsing answers %s: %w", path, err)
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNoData)
	}
	return answers, nil
}
