package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aozorabiz/kaisha-intel/internal/model"
)

var (
	runName        string
	runPrefecture  string
	runCity        string
	runAddress     string
	runForceSearch bool
)

var runCmd = &cobra.Command{
	Use:   "run <website>",
	Short: "Run the intelligence pipeline for one company website",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.IntelRequest{
			Website:             args[0],
			CompanyName:         runName,
			CompanyPrefecture:   runPrefecture,
			CompanyCity:         runCity,
			CompanyAddress:      runAddress,
			ForceExternalSearch: runForceSearch,
		}

		resp, err := env.pipeline.Run(cmd.Context(), req)
		if err != nil {
			// Failed runs may still carry diagnostic meta worth printing.
			if resp != nil && resp.Meta != nil {
				zap.L().Error("pipeline failed",
					zap.String("website", args[0]),
					zap.String("method", resp.Meta.Method),
					zap.Error(err),
				)
			}
			return eris.Wrap(err, "run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(resp), "run: encode result")
	},
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "registered company name")
	runCmd.Flags().StringVar(&runPrefecture, "prefecture", "", "registered prefecture")
	runCmd.Flags().StringVar(&runCity, "city", "", "registered city")
	runCmd.Flags().StringVar(&runAddress, "address", "", "registered address")
	runCmd.Flags().BoolVar(&runForceSearch, "force-search", false, "always run external search")
	rootCmd.AddCommand(runCmd)
}
