// Package config defines the compiler's YAML-loadable configuration and
// the assembler invocation defaults.
//
// 功能：定义编译器可选的 YAML 配置（外部装配器路径与参数），
// 与仿真器原本的 Config/RuntimeConfig 两段式风格一致：YAML
// 反序列化得到的原始 Config，经 NewRuntimeConfig 填充默认值后使用。
// 说明：地图编译是一次性命令行操作，大多数设置通过 flag 传入；本包
// 只保留真正适合放进配置文件、跨次运行复用的选项（装配器路径与参数）。
package config

// AssemblerConfig controls how the external network assembler (e.g. a
// netconvert-compatible tool) is invoked after the writer stage.
type AssemblerConfig struct {
	// Path is the assembler executable. Empty uses the
	// TV4P_ASSEMBLER_PATH environment variable, falling back to
	// "netconvert" on PATH.
	Path string `yaml:"path,omitempty"`
	// JunctionJoinDist is passed through as the assembler's
	// --junctions.join-dist, preserving the original converter's tuning
	// for when nearby junction nodes should be merged.
	JunctionJoinDist float64 `yaml:"junction_join_dist,omitempty"`
	// KeepGeometry preserves original road geometry through the assembler
	// (--geometry.remove=false) instead of letting it simplify shapes.
	KeepGeometry bool `yaml:"keep_geometry,omitempty"`
	// AllowTurnarounds opts back into synthetic U-turn connections; the
	// original converter always suppressed them (--no-turnarounds), so the
	// zero value matches that default.
	AllowTurnarounds bool `yaml:"allow_turnarounds,omitempty"`
	// ExtraArgs are appended after the compiler's own required flags.
	ExtraArgs []string `yaml:"extra_args,omitempty"`
}

// Config is the optional YAML configuration file contract.
type Config struct {
	Assembler AssemblerConfig `yaml:"assembler,omitempty"`
}

// RuntimeConfig is Config plus the defaults resolved for this run.
type RuntimeConfig struct {
	All Config
}

// NewRuntimeConfig fills in defaults atop a parsed Config.
func NewRuntimeConfig(c Config) *RuntimeConfig {
	rc := &RuntimeConfig{All: c}
	if rc.All.Assembler.JunctionJoinDist == 0 {
		rc.All.Assembler.JunctionJoinDist = 10.0 // original converter's default
	}
	return rc
}
