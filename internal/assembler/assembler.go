// Package assembler invokes an external network-assembly tool (a
// netconvert-compatible backend) over the writer's plain-XML output.
//
// 功能：调用外部网络装配工具（如 netconvert），捕获其 stdout/stderr；
// 非零退出码转换为 BackendFailure（不影响已经落盘的产物）。
// 说明：子进程调用方式与参数集合依据 original_source/ 中
// _run_netconvert 的 flag 组合改写，可执行文件路径可通过配置或
// TV4P_ASSEMBLER_PATH 环境变量覆盖。
package assembler

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/apperr"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/config"
)

var log = logrus.WithField("component", "assembler")

const pathEnvVar = "TV4P_ASSEMBLER_PATH"

// Run invokes the assembler over prefix's .nod/.edg/.con artifacts,
// producing prefix+".net.xml". Returns an apperr BackendFailure (never
// fatal to the already-written artifacts) on a non-zero exit.
func Run(prefix string, cfg config.AssemblerConfig) error {
	path := resolvePath(cfg.Path)

	args := []string{
		"--node-files=" + prefix + ".nod.xml",
		"--edge-files=" + prefix + ".edg.xml",
		"--connection-files=" + prefix + ".con.xml",
		"--output-file=" + prefix + ".net.xml",
	}
	if !cfg.AllowTurnarounds {
		args = append(args, "--no-turnarounds")
	}
	if cfg.JunctionJoinDist > 0 {
		args = append(args, fmt.Sprintf("--junctions.join-dist=%.2f", cfg.JunctionJoinDist))
	}
	if cfg.KeepGeometry {
		args = append(args, "--geometry.remove=false")
	}
	args = append(args, cfg.ExtraArgs...)

	cmd := exec.Command(path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Infof("invoking assembler: %s %v", path, args)
	err := cmd.Run()
	if stdout.Len() > 0 {
		log.Debugf("assembler stdout: %s", stdout.String())
	}
	if stderr.Len() > 0 {
		log.Debugf("assembler stderr: %s", stderr.String())
	}
	if err != nil {
		return apperr.BackendFailure("assembler invocation failed: %v (stderr: %s)", err, stderr.String())
	}
	return nil
}

func resolvePath(configured string) string {
	if configured != "" {
		return configured
	}
	if v := os.Getenv(pathEnvVar); v != "" {
		return v
	}
	return "netconvert"
}
