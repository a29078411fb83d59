package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/watertap-org/flowsheet-int/internal/api"
	"github.com/watertap-org/flowsheet-int/internal/config"
	"github.com/watertap-org/flowsheet-int/internal/events"
	"github.com/watertap-org/flowsheet-int/internal/logging"
	"github.com/watertap-org/flowsheet-int/internal/models"
	"github.com/watertap-org/flowsheet-int/internal/validation"
)

// backendClients are the API clients created by the current command.
var backendClients []*api.Client

// loadSettings reads the config file and merges environment and flags
// without validating anything.
func loadSettings() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	// Priority: flags > environment > config file > defaults
	cfg.MergeWithEnv()
	cfg.MergeWithFlags(backendURL, flowsheetID)
	return cfg, nil
}

// loadConfig returns settings valid for flowsheet-scoped commands.
func loadConfig() (*config.Config, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingFlowsheetID) {
			return nil, fmt.Errorf("%w (use --flowsheet, %s or [backend] flowsheet_id)", err, config.EnvFlowsheetID)
		}
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validation.ValidateFlowsheetID(cfg.FlowsheetID); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configNameArg cleans a config name given on the command line.
func configNameArg(name string) (string, error) {
	name = validation.SanitizeName(name)
	if err := validation.ValidateConfigName(name); err != nil {
		return "", err
	}
	return name, nil
}

// getAPIClient creates an API client for cfg, logging through the CLI logger.
func getAPIClient(cfg *config.Config) (*api.Client, error) {
	client, err := api.NewClient(cfg, api.WithLogger(GetLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	backendClients = append(backendClients, client)
	return client, nil
}

// logBackendStats logs the call counts of the clients created so far at
// debug level and forgets them.
func logBackendStats() {
	for _, c := range backendClients {
		c.Stats()
	}
	backendClients = nil
}

// traceEvents logs every event on bus at debug level until the bus is
// closed, then reports events that subscribers were too slow to take.
func traceEvents(bus *events.EventBus, log *logging.Logger) <-chan struct{} {
	ch := bus.SubscribeAll()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			e := log.Debug().Str("event", string(ev.Type()))
			if pe, ok := ev.(*events.PanelEvent); ok {
				e = e.Str("flowsheet", pe.FlowsheetID).Str("config", pe.ConfigName)
				if pe.Key != "" {
					e = e.Str("key", pe.Key)
				}
				if pe.Err != nil {
					e = e.AnErr("cause", pe.Err)
				}
			}
			e.Msg("panel event")
		}
		if n := bus.GetDroppedEventCount(); n > 0 {
			log.Warn().Int64("dropped", n).Msg("Some panel events were not delivered")
		}
	}()
	return done
}

// readFlowsheetFile reads either a full flowsheet document
// ({"name", "inputData", "outputData"}) or a bare input data document
// ({"version", "exports", ...}).
func readFlowsheetFile(path string) (*models.FlowsheetData, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parseFlowsheet(data)
}

func parseFlowsheet(data []byte) (*models.FlowsheetData, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid flowsheet document: %w", err)
	}

	if _, ok := probe["inputData"]; ok {
		var fd models.FlowsheetData
		if err := json.Unmarshal(data, &fd); err != nil {
			return nil, fmt.Errorf("invalid flowsheet document: %w", err)
		}
		if fd.InputData == nil {
			fd.InputData = &models.InputData{Exports: models.NewExports()}
		}
		return &fd, nil
	}

	var input models.InputData
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("invalid input data document: %w", err)
	}
	return &models.FlowsheetData{InputData: &input}, nil
}

// writeOutput encodes v as JSON or YAML. YAML output keeps the key order of
// the JSON encoding.
func writeOutput(w io.Writer, format string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	switch strings.ToLower(format) {
	case "json", "":
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err := w.Write(buf.Bytes())
		return err
	case "yaml", "yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("failed to convert output to YAML: %w", err)
		}
		blockStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format %q (want json or yaml)", format)
}

// blockStyle drops the flow and quoting styles the JSON text carried in.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// splitAssignment parses key=value.
func splitAssignment(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", s)
	}
	return key, strings.TrimSpace(value), nil
}
