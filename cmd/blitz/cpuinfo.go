package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sys/cpu"

	internalcpu "github.com/jackzcai/blitz/internal/backend/cpu"
	"github.com/jackzcai/blitz/internal/parallel"
)

func newCPUInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cpuinfo",
		Short: "Print the CPU features that drive kernel tuning",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printCPUInfo(cmd.OutOrStdout())
		},
	}
}

func printCPUInfo(w io.Writer) {
	fmt.Fprintf(w, "GOOS: %s\n", runtime.GOOS)
	fmt.Fprintf(w, "GOARCH: %s\n", runtime.GOARCH)
	fmt.Fprintf(w, "NumCPU: %d\n", runtime.NumCPU())
	fmt.Fprintln(w)

	switch runtime.GOARCH {
	case "arm64":
		fmt.Fprintln(w, "=== golang.org/x/sys/cpu.ARM64 ===")
		fmt.Fprintf(w, "  HasASIMD:    %v (NEON baseline)\n", cpu.ARM64.HasASIMD)
		fmt.Fprintf(w, "  HasFP:       %v\n", cpu.ARM64.HasFP)
		fmt.Fprintf(w, "  HasASIMDHP:  %v (FP16 NEON)\n", cpu.ARM64.HasASIMDHP)
		fmt.Fprintf(w, "  HasSVE:      %v\n", cpu.ARM64.HasSVE)
	case "amd64":
		fmt.Fprintln(w, "=== golang.org/x/sys/cpu.X86 ===")
		fmt.Fprintf(w, "  HasAVX:      %v\n", cpu.X86.HasAVX)
		fmt.Fprintf(w, "  HasAVX2:     %v\n", cpu.X86.HasAVX2)
		fmt.Fprintf(w, "  HasFMA:      %v\n", cpu.X86.HasFMA)
		fmt.Fprintf(w, "  HasAVX512F:  %v\n", cpu.X86.HasAVX512F)
	}
	fmt.Fprintln(w)

	par := parallel.DefaultConfig()
	fmt.Fprintf(w, "Blocked GEMM tile: %d\n", internalcpu.BlockSize())
	fmt.Fprintf(w, "Workers: %d (parallel: %v, min chunk %d)\n", par.NumWorkers, par.Enabled, par.MinChunkSize)
}
