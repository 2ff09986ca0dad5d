package topology

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// InitArgs is the startup request handed to the transport engine.
type InitArgs struct {
	// Dev enables the engine's development mode.
	Dev bool `msgpack:"dev"`

	// Addr is the address the engine binds.
	Addr string `msgpack:"addr"`

	// SDK is the SDK version tag, e.g. "go-0.1.0".
	SDK string `msgpack:"sdk"`

	// ConfigPath points at the declarative app config the engine parses.
	ConfigPath string `msgpack:"hfn_config_path,omitempty"`

	// PackageNames lists every package the application registered.
	PackageNames []string `msgpack:"pkg_names"`

	// WorkerThreads sizes the engine's own thread pool; 0 leaves it default.
	WorkerThreads int `msgpack:"tokio_work_threads,omitempty"`
}

// Encode serializes the args as a msgpack map.
func (a InitArgs) Encode() ([]byte, error) {
	b, err := msgpack.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode init args: %w", err)
	}
	return b, nil
}

// DecodeInitArgs parses args produced by InitArgs.Encode.
func DecodeInitArgs(b []byte) (InitArgs, error) {
	var a InitArgs
	if err := msgpack.Unmarshal(b, &a); err != nil {
		return InitArgs{}, fmt.Errorf("decode init args: %w", err)
	}
	return a, nil
}

// Encode serializes the topology as a msgpack struct map, the form the engine
// returns from init.
func (t Topology) Encode() ([]byte, error) {
	b, err := msgpack.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode topology: %w", err)
	}
	return b, nil
}

// Decode parses the engine's init result.
func Decode(b []byte) (Topology, error) {
	var t Topology
	if err := msgpack.Unmarshal(b, &t); err != nil {
		return Topology{}, fmt.Errorf("decode topology: %w", err)
	}
	return t, nil
}

// LoadFile reads a YAML topology fixture. Fixtures stand in for the engine in
// development mode and in tests.
func LoadFile(path string) (Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Topology{}, fmt.Errorf("read topology: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML topology fixture.
func Parse(data []byte) (Topology, error) {
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Topology{}, fmt.Errorf("parse topology: %w", err)
	}
	return t, nil
}
