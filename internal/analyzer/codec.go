package analyzer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nxsec/bpfuzz/internal/graph"
)

// adjacencyHeader is the first line of every CFG dump, consumed and
// produced verbatim per the base spec's CFG file format.
const adjacencyHeader = "#Adjacency list in hexadecimal"

// addrToHex renders an Address as the two's-complement hex token the
// base spec requires ("implementations must be self-consistent in both
// directions"); negative sentinels are emitted as their 64-bit two's
// complement, never as a minus sign, so Encode/Decode round-trip
// exactly.
func addrToHex(a graph.Address) string {
	return fmt.Sprintf("%x", uint64(int64(a)))
}

func hexToAddr(s string) (graph.Address, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("analyzer: malformed hex address %q: %w", s, err)
	}
	return graph.Address(int64(v)), nil
}

// Encode writes cfg in the adjacency-list format:
//
//	#Adjacency list in hexadecimal
//	<function names separated by spaces>
//	<node_hex> <succ_hex> <succ_hex> ...
func Encode(w io.Writer, cfg *graph.CFG) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, adjacencyHeader); err != nil {
		return err
	}

	seenFn := map[string]bool{}
	var fnNames []string
	nodes := cfg.Nodes()
	for _, n := range nodes {
		if fn, ok := cfg.FunctionOf(n); ok && !seenFn[fn] {
			seenFn[fn] = true
			fnNames = append(fnNames, fn)
		}
	}
	if _, err := fmt.Fprintln(bw, strings.Join(fnNames, " ")); err != nil {
		return err
	}

	for _, n := range nodes {
		succs := cfg.Successors(n)
		tokens := make([]string, 0, len(succs)+1)
		tokens = append(tokens, addrToHex(n))
		for _, s := range succs {
			tokens = append(tokens, addrToHex(s))
		}
		if _, err := fmt.Fprintln(bw, strings.Join(tokens, " ")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode reads a CFG dump produced by Encode (or by the external
// static-analysis backend in the same format) and reconstructs a CFG.
// entry names the entry point, since the adjacency list alone does not
// single one out.
func Decode(r io.Reader, entry graph.Address) (*graph.CFG, []string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		return nil, nil, fmt.Errorf("analyzer: empty CFG dump")
	}
	if strings.TrimSpace(sc.Text()) != adjacencyHeader {
		return nil, nil, fmt.Errorf("analyzer: missing %q header", adjacencyHeader)
	}

	if !sc.Scan() {
		return nil, nil, fmt.Errorf("analyzer: CFG dump missing function-name line")
	}
	var fnNames []string
	if line := strings.TrimSpace(sc.Text()); line != "" {
		fnNames = strings.Fields(line)
	}

	cfg := graph.NewCFG(entry)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		node, err := hexToAddr(fields[0])
		if err != nil {
			return nil, nil, err
		}
		cfg.AddNode(node, "")
		for _, succHex := range fields[1:] {
			succ, err := hexToAddr(succHex)
			if err != nil {
				return nil, nil, err
			}
			cfg.AddNode(succ, "")
			if err := cfg.AddEdge(node, succ, graph.EdgeFallthrough); err != nil {
				return nil, nil, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("analyzer: reading CFG dump: %w", err)
	}
	return cfg, fnNames, nil
}
