package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/doc-composer/internal/assemble"
	"github.com/jonathan/doc-composer/internal/cache"
	"github.com/jonathan/doc-composer/internal/configstore"
	"github.com/jonathan/doc-composer/internal/mapping"
	"github.com/jonathan/doc-composer/internal/preprocess"
	"github.com/jonathan/doc-composer/internal/value"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a single document from the command line",
	Long: `Compose the mapping document for the given template and client
service, apply it to a JSON payload file, and write the resulting PDF.`,
	RunE: runGenerate,
}

var (
	genConfigPath  string
	genTemplate    string
	genClient      string
	genLabel       string
	genProduct     string
	genMarket      string
	genState       string
	genPayloadPath string
	genOutputPath  string
)

func init() {
	generateCmd.Flags().StringVar(&genConfigPath, "config", "", "Path to config.json file")
	generateCmd.Flags().StringVarP(&genTemplate, "template", "t", "", "Template name (required)")
	generateCmd.Flags().StringVarP(&genClient, "client-service", "c", "", "Client service name (required)")
	generateCmd.Flags().StringVar(&genLabel, "label", "", "Config store label")
	generateCmd.Flags().StringVar(&genProduct, "product", "", "Product type")
	generateCmd.Flags().StringVar(&genMarket, "market", "", "Market category")
	generateCmd.Flags().StringVar(&genState, "state", "", "State code")
	generateCmd.Flags().StringVarP(&genPayloadPath, "payload", "p", "", "Path to JSON payload file (required)")
	generateCmd.Flags().StringVarP(&genOutputPath, "output", "o", "output.pdf", "Output file path")
	_ = generateCmd.MarkFlagRequired("template")
	_ = generateCmd.MarkFlagRequired("client-service")
	_ = generateCmd.MarkFlagRequired("payload")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(genConfigPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	raw, err := os.ReadFile(genPayloadPath)
	if err != nil {
		return fmt.Errorf("failed to read payload file: %w", err)
	}
	payload, err := value.DecodeJSONMap(raw)
	if err != nil {
		return fmt.Errorf("failed to parse payload JSON: %w", err)
	}

	caches := cache.NewRegistry()
	store := configstore.NewClient(&configstore.Options{
		BaseURL: cfg.ConfigStoreURL,
		Timeout: cfg.ConfigStoreTimeout(),
	}, caches)
	composer := mapping.NewComposer(store, mapping.Options{CandidateOrder: cfg.CandidateOrder})
	assembler := assemble.NewAssembler(assemble.Options{Caches: caches})
	plans := assemble.NewPlanLoader(store, "default", cfg.DefaultLabel, caches)
	rules := preprocess.NewLoader(store)

	ctx := context.Background()
	req := &mapping.Request{
		TemplateName:   genTemplate,
		ClientService:  genClient,
		Label:          genLabel,
		ProductType:    genProduct,
		MarketCategory: genMarket,
		State:          genState,
		Payload:        payload,
	}
	doc, err := composer.ComposeDocument(ctx, req)
	if err != nil {
		return fmt.Errorf("mapping composition failed: %w", err)
	}
	if err := mapping.ValidateTree(doc.Tree); err != nil {
		return err
	}

	if rr, err := rules.ForDocument(ctx, genLabel, doc.Tree); err == nil && rr != nil && !rr.Empty() {
		payload = preprocess.Enrich(payload, rr)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: preprocessing rules unavailable: %v\n", err)
	}

	plan, hasPlan, err := plans.Resolve(ctx, doc.Tree)
	if err != nil {
		return err
	}
	var out []byte
	if hasPlan {
		out, err = assembler.Generate(ctx, plan, payload)
	} else {
		out, err = assembler.RenderSingle(ctx, doc, payload)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(genOutputPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(out), genOutputPath)
	return nil
}

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the registered payload functions",
	RunE: func(_ *cobra.Command, _ []string) error {
		assembler := assemble.NewAssembler(assemble.Options{})
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(assembler.Functions().Descriptions())
	},
}

func init() {
	rootCmd.AddCommand(functionsCmd)
}
