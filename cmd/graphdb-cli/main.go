// Command graphdb-cli is a REST client for a running graphdb server,
// in the spirit of redis-cli or psql.
//
// A cobra root command resolving a connection string via
// PersistentPreRunE, one subcommand per REST operation, and a shared
// doRequest helper that pretty-prints JSON responses. No interactive
// shell mode: this engine's REST surface is single-dataset, so there
// is no per-dataset switching for a shell to mediate.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/denizumutdereli/graphdb/pkg/connstring"
)

type cli struct {
	conn       *connstring.Info
	httpClient *http.Client
}

func main() {
	var connectStr string

	c := &cli{httpClient: &http.Client{Timeout: 30 * time.Second}}

	rootCmd := &cobra.Command{
		Use:   "graphdb-cli",
		Short: "graphdb-cli — REST client for graphdb servers",
		Long:  "A command-line client for driving a graphdb server's REST API: ingest, search, inference, attractors, and stats.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if connectStr == "" {
				connectStr = os.Getenv("GRAPHDB_URL")
			}
			if connectStr == "" {
				connectStr = "graphdb://localhost:7070"
			}
			info, err := connstring.Parse(connectStr)
			if err != nil {
				return fmt.Errorf("invalid connection string: %w", err)
			}
			c.conn = info
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&connectStr, "connect", "", "Connection string (graphdb://host[:port])")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.get("/healthz")
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show engine statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.get("/v1/stats")
		},
	})

	// ── neurons ─────────────────────────────────────────────
	ingestCmd := &cobra.Command{
		Use:   "ingest [text]",
		Short: "Ingest text as a new neuron",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceType, _ := cmd.Flags().GetString("source-type")
			tags, _ := cmd.Flags().GetStringSlice("tag")
			body, err := json.Marshal(map[string]any{
				"text":       args[0],
				"sourceType": sourceType,
				"tags":       tags,
			})
			if err != nil {
				return err
			}
			return c.post("/v1/neurons", body)
		},
	}
	ingestCmd.Flags().String("source-type", "cli", "Source type recorded on the neuron")
	ingestCmd.Flags().StringSlice("tag", nil, "Tags to attach (repeatable)")
	rootCmd.AddCommand(ingestCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "get-neuron [id]",
		Short: "Fetch a neuron by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.get("/v1/neurons/" + args[0])
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "delete-neuron [id]",
		Short: "Delete a neuron by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.delete("/v1/neurons/" + args[0])
		},
	})

	for _, dir := range []string{"outgoing", "incoming"} {
		dir := dir
		rootCmd.AddCommand(&cobra.Command{
			Use:   dir + " [id]",
			Short: "List " + dir + " synapses for a neuron",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.get("/v1/neurons/" + args[0] + "/" + dir)
			},
		})
	}

	// ── search ──────────────────────────────────────────────
	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a similarity search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, _ := cmd.Flags().GetInt("k")
			return c.get("/v1/search?q=" + urlEscape(args[0]) + "&k=" + strconv.Itoa(k))
		},
	}
	searchCmd.Flags().Int("k", 10, "Number of results")
	rootCmd.AddCommand(searchCmd)

	// ── synapses ────────────────────────────────────────────
	synapseCmd := &cobra.Command{
		Use:   "link [source-id] [target-id]",
		Short: "Create a synapse between two neurons",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			synType, _ := cmd.Flags().GetString("type")
			weight, _ := cmd.Flags().GetFloat64("weight")
			body, err := json.Marshal(map[string]any{
				"sourceId": args[0],
				"targetId": args[1],
				"type":     strings.ToUpper(synType),
				"weight":   weight,
			})
			if err != nil {
				return err
			}
			return c.post("/v1/synapses", body)
		},
	}
	synapseCmd.Flags().String("type", "ASSOCIATIVE", "Synapse type: CAUSAL, SIMILAR, TEMPORAL, ASSOCIATIVE")
	synapseCmd.Flags().Float64("weight", 0.5, "Synapse weight (0.0-1.0)")
	rootCmd.AddCommand(synapseCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "unlink [synapse-id]",
		Short: "Remove a synapse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.delete("/v1/synapses/" + args[0])
		},
	})

	// ── inference ───────────────────────────────────────────
	rootCmd.AddCommand(&cobra.Command{
		Use:   "infer-forward [neuron-id]",
		Short: "Run forward deduction from a neuron",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]any{"neuronId": args[0]})
			return c.post("/v1/infer/forward", body)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "infer-backward [neuron-id]",
		Short: "Run backward abduction toward a neuron",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]any{"neuronId": args[0]})
			return c.post("/v1/infer/backward", body)
		},
	})
	chainCmd := &cobra.Command{
		Use:   "infer-chain [from-id] [to-id]",
		Short: "Find a bidirectional causal chain between two neurons",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxDepth, _ := cmd.Flags().GetInt("max-depth")
			includeTemporal, _ := cmd.Flags().GetBool("include-temporal")
			body, _ := json.Marshal(map[string]any{
				"from":            args[0],
				"to":              args[1],
				"maxDepth":        maxDepth,
				"includeTemporal": includeTemporal,
			})
			return c.post("/v1/infer/chain", body)
		},
	}
	chainCmd.Flags().Int("max-depth", 6, "Maximum hop count")
	chainCmd.Flags().Bool("include-temporal", false, "Allow temporal synapses in the chain")
	rootCmd.AddCommand(chainCmd)

	// ── attractors ──────────────────────────────────────────
	rootCmd.AddCommand(&cobra.Command{
		Use:   "attractors",
		Short: "List active attractors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.get("/v1/attractors")
		},
	})
	createAttractorCmd := &cobra.Command{
		Use:   "create-attractor [id] [name] [text]",
		Short: "Create a goal-state attractor",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			strength, _ := cmd.Flags().GetFloat64("strength")
			priority, _ := cmd.Flags().GetInt("priority")
			body, _ := json.Marshal(map[string]any{
				"id":       args[0],
				"name":     args[1],
				"text":     args[2],
				"strength": strength,
				"priority": priority,
			})
			return c.post("/v1/attractors", body)
		},
	}
	createAttractorCmd.Flags().Float64("strength", 0.5, "Initial attractor strength")
	createAttractorCmd.Flags().Int("priority", 5, "Attractor priority")
	rootCmd.AddCommand(createAttractorCmd)

	pathCmd := &cobra.Command{
		Use:   "attractor-path [attractor-id] [neuron-id]",
		Short: "Find the path from a neuron toward an attractor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxHops, _ := cmd.Flags().GetInt("max-hops")
			body, _ := json.Marshal(map[string]any{"neuronId": args[1], "maxHops": maxHops})
			return c.post("/v1/attractors/"+args[0]+"/path", body)
		},
	}
	pathCmd.Flags().Int("max-hops", 10, "Maximum hop count")
	rootCmd.AddCommand(pathCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func urlEscape(s string) string {
	replacer := strings.NewReplacer(" ", "+", "&", "%26", "#", "%23")
	return replacer.Replace(s)
}

// ── HTTP helpers ─────────────────────────────────────────────────────

func (c *cli) get(path string) error    { return c.doRequest(http.MethodGet, path, nil) }
func (c *cli) delete(path string) error { return c.doRequest(http.MethodDelete, path, nil) }
func (c *cli) post(path string, body []byte) error {
	return c.doRequest(http.MethodPost, path, body)
}

func (c *cli) doRequest(method, path string, body []byte) error {
	url := c.conn.BaseURL() + path

	req, err := http.NewRequest(method, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.conn.Dataset != "" {
		req.Header.Set("X-Dataset-ID", c.conn.Dataset)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "Error %d: %s\n", resp.StatusCode, string(data))
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	var pretty map[string]any
	if err := json.Unmarshal(data, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	var arr []any
	if err := json.Unmarshal(data, &arr); err == nil {
		out, _ := json.MarshalIndent(arr, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	fmt.Println(string(data))
	return nil
}
