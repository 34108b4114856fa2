// Package config loads and watches the simulator configuration file (sim.yaml).
//
// Top-level types:
//   - Config{Sim}: full config tree parsed from YAML
//   - SimConfig: variant, params, output_dir, scenarios [], schedules [],
//     sweeps [], sensitivity, agents
//   - Scenario: name + a fixed list of {A, E, R} inputs
//   - Schedule: name, steps, initial_e, base, mutations [{at_step, e}]
//   - Sweep: name, field (A|E|R|k|m|omega|p), values [], base, variant, params
//   - AgentsConfig: key_env, economic_influence; Key() resolves the credential
//     from the environment
//
// Load(path) applies defaults (generalized variant, k=1 m=2 omega=0.8 p=3,
// output_dir "results", economic_influence 0.7), parses the YAML and
// validates names, variants, fields and bounds. A config that names no runs,
// and the empty path, get the built-in runs: the stable (E=0.8, 8 steps) and
// collapse (E=0.1, 5 steps) schedules plus the m and E sensitivity sweeps.
//
// Watch(ctx, path, onChange) uses fsnotify to re-load the file on save.
package config
