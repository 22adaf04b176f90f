package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/unravel/internal/config"
	"github.com/ShayCichocki/unravel/internal/engine"
	"github.com/ShayCichocki/unravel/internal/oracle"
	"github.com/ShayCichocki/unravel/internal/workflow"
)

var (
	planObjective string
	planFormat    string
)

var planCmd = &cobra.Command{
	Use:   "plan <problem>",
	Short: "Create the root workflow without executing it",
	Long: `Plan builds the root workflow for a problem and prints its compiled
program without running anything. Use it to inspect what the engine
would do before committing to a solve.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan(strings.Join(args, " "))
	},
}

func init() {
	planCmd.Flags().StringVarP(&planObjective, "objective", "o", "", "What a solution must achieve")
	planCmd.Flags().StringVar(&planFormat, "format", "tree", "Output format: tree or yaml")
}

// planDoc is the YAML shape of a planned workflow.
type planDoc struct {
	ID        string     `yaml:"id"`
	Problem   string     `yaml:"problem"`
	Objective string     `yaml:"objective"`
	Depth     int        `yaml:"depth"`
	State     string     `yaml:"state"`
	Fallback  bool       `yaml:"fallback,omitempty"`
	Parallel  bool       `yaml:"parallel,omitempty"`
	Steps     []planStep `yaml:"steps"`
}

// planStep is one program step in YAML output.
type planStep struct {
	Op        string `yaml:"op"`
	Text      string `yaml:"text,omitempty"`
	Problem   string `yaml:"problem,omitempty"`
	Objective string `yaml:"objective,omitempty"`
}

func runPlan(problemStatement string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	apiKey, err := config.ResolveAPIKey(cfg)
	if err != nil {
		return err
	}

	client, err := oracle.NewAnthropicClient(oracle.AnthropicConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return fmt.Errorf("create oracle client: %w", err)
	}

	solver := engine.New(cfg, client)

	inst, err := solver.Plan(context.Background(), problemStatement, planObjective)
	if err != nil {
		return err
	}

	switch planFormat {
	case "yaml":
		return printPlanYAML(inst)
	default:
		printPlanTree(inst)
		return nil
	}
}

// printPlanYAML marshals the planned workflow to YAML on stdout.
func printPlanYAML(inst *workflow.Instance) error {
	program := inst.Program()
	doc := planDoc{
		ID:        inst.ID,
		Problem:   inst.Problem,
		Objective: inst.Objective,
		Depth:     inst.Context.Depth,
		State:     string(inst.State()),
		Fallback:  program.Fallback,
		Parallel:  program.Parallel,
	}
	for _, step := range program.Steps {
		doc.Steps = append(doc.Steps, planStep{
			Op:        string(step.Op),
			Text:      step.Text,
			Problem:   step.Problem,
			Objective: step.Objective,
		})
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

var (
	planTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	planMetaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	planOpStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	planBranchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// printPlanTree renders the workflow and its program as a styled tree.
func printPlanTree(inst *workflow.Instance) {
	program := inst.Program()

	fmt.Println(planTitleStyle.Render(inst.Problem))
	fmt.Println(planMetaStyle.Render(fmt.Sprintf("objective: %s", inst.Objective)))
	fmt.Println(planMetaStyle.Render(fmt.Sprintf("workflow %s, depth %d, state %s", inst.ID, inst.Context.Depth, inst.State())))
	if program.Fallback {
		fmt.Println(planMetaStyle.Render("program: synthesized fallback"))
	}

	for i, step := range program.Steps {
		branch := "├─"
		if i == len(program.Steps)-1 {
			branch = "└─"
		}

		var detail string
		switch step.Op {
		case workflow.OpRecurse:
			detail = fmt.Sprintf("%s (objective: %s)", step.Problem, step.Objective)
		default:
			detail = step.Text
		}

		fmt.Printf("%s %s %s\n",
			planBranchStyle.Render(branch),
			planOpStyle.Render(string(step.Op)),
			detail)
	}
}
