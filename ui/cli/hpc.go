// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/voxaero/meshpilot/internal/db"
	"github.com/voxaero/meshpilot/internal/hpc"
	"github.com/voxaero/meshpilot/internal/i18n"
	"github.com/voxaero/meshpilot/internal/model"
)

// connectProfile opens an SSH connection to a named profile, prompting for
// a password on the terminal when the profile uses password auth.
func connectProfile(name string) (*hpc.Connector, error) {
	profile, err := db.GetProfile(name)
	if err != nil {
		return nil, fmt.Errorf("%s", i18n.T("hpc.unknown_profile", name))
	}

	var password string
	if profile.Auth == model.AuthPassword {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Printf("Password for %s: ", profile.String())
			bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
			if err != nil {
				return nil, fmt.Errorf("could not read password: %w", err)
			}
			password = string(bytePassword)
			fmt.Println()
		}
	}

	fmt.Println(i18n.T("hpc.connecting", profile.String()))
	return hpc.Connect(*profile, password)
}

func newHPCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hpc",
		Short: "Submit and manage jobs on remote clusters",
	}
	cmd.AddCommand(
		newHPCTestCmd(),
		newHPCInfoCmd(),
		newHPCSubmitCmd(),
		newHPCStatusCmd(),
		newHPCJobsCmd(),
		newHPCCancelCmd(),
		newHPCFetchCmd(),
	)
	return cmd
}

func newHPCTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <profile>",
		Short: "Test the SSH connection for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connectProfile(args[0])
			if err != nil {
				return fmt.Errorf("%s", i18n.T("hpc.connect_failed", err))
			}
			defer conn.Close()

			sched, err := conn.DetectScheduler(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("hpc.connected", conn.Profile().String(), sched))
			return nil
		},
	}
}

func newHPCInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <profile>",
		Short: "Show cluster details for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connectProfile(args[0])
			if err != nil {
				return fmt.Errorf("%s", i18n.T("hpc.connect_failed", err))
			}
			defer conn.Close()

			info, err := conn.Info(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("os: %s\n", info.OS)
			fmt.Printf("cpus: %s\n", info.CPUCount)
			fmt.Printf("memory: %s\n", info.Memory)
			fmt.Printf("scheduler: %s\n", info.SchedulerVersion)
			if len(info.Queues) > 0 {
				fmt.Printf("queues: %s\n", strings.Join(info.Queues, ", "))
			}
			return nil
		},
	}
}

func newHPCSubmitCmd() *cobra.Command {
	var req hpc.JobRequest
	var inputs []string

	cmd := &cobra.Command{
		Use:   "submit <profile> -- <command...>",
		Short: "Submit a batch job",
		Long: `Uploads the input files, renders a submission script for the profile's
scheduler and submits it. Everything after -- becomes the job body.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connectProfile(args[0])
			if err != nil {
				return fmt.Errorf("%s", i18n.T("hpc.connect_failed", err))
			}
			defer conn.Close()

			req.Commands = args[1:]
			if req.Queue == "" {
				req.Queue = conn.Profile().Queue
			}

			job, err := conn.Submit(cmd.Context(), req, inputs)
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("hpc.submitted", job.Name, job.SchedulerID))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "job name")
	cmd.Flags().IntVar(&req.Nodes, "nodes", 1, "node count")
	cmd.Flags().IntVar(&req.CoresPerNode, "cores", 4, "cores per node")
	cmd.Flags().StringVar(&req.Walltime, "walltime", "01:00:00", "walltime (HH:MM:SS)")
	cmd.Flags().StringVar(&req.Memory, "memory", "", `memory request (e.g. "16G")`)
	cmd.Flags().StringVar(&req.Queue, "queue", "", "queue/partition (default from profile)")
	cmd.Flags().StringArrayVar(&req.Modules, "module", nil, "environment module to load (repeatable)")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "input file to upload (repeatable)")
	return cmd
}

func newHPCStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <profile> <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connectProfile(args[0])
			if err != nil {
				return fmt.Errorf("%s", i18n.T("hpc.connect_failed", err))
			}
			defer conn.Close()

			status, err := conn.Status(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", args[1], status)
			return nil
		},
	}
}

func newHPCJobsCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "jobs [profile]",
		Short: "List tracked jobs, or the remote queue with --remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()

			if remote {
				if len(args) != 1 {
					return fmt.Errorf("--remote requires a profile")
				}
				conn, err := connectProfile(args[0])
				if err != nil {
					return fmt.Errorf("%s", i18n.T("hpc.connect_failed", err))
				}
				defer conn.Close()

				jobs, err := conn.Jobs(cmd.Context())
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Println(i18n.T("hpc.no_jobs"))
					return nil
				}
				fmt.Fprintln(w, "ID\tNAME\tSTATUS\tRUNTIME")
				for _, j := range jobs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", j.ID, j.Name, j.Status, j.Runtime)
				}
				return nil
			}

			jobs, err := db.GetAllJobs()
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println(i18n.T("hpc.no_jobs"))
				return nil
			}
			fmt.Fprintln(w, "ID\tNAME\tPROFILE\tSTATUS\tSUBMITTED")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					j.SchedulerID, j.Name, j.ProfileName, j.Status,
					j.SubmitTime.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "query the remote scheduler queue")
	return cmd
}

func newHPCCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <profile> <job-id>",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connectProfile(args[0])
			if err != nil {
				return fmt.Errorf("%s", i18n.T("hpc.connect_failed", err))
			}
			defer conn.Close()

			if err := conn.Cancel(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Println(i18n.T("hpc.cancelled", args[1]))
			return nil
		},
	}
}

func newHPCFetchCmd() *cobra.Command {
	var output string
	var archive bool

	cmd := &cobra.Command{
		Use:   "fetch <profile> <remote-dir>",
		Short: "Download job results",
		Long: `Downloads a remote result directory, either file by file or bundled
into a zstd-compressed tar archive with --archive.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connectProfile(args[0])
			if err != nil {
				return fmt.Errorf("%s", i18n.T("hpc.connect_failed", err))
			}
			defer conn.Close()

			remoteDir := args[1]
			out := output
			var n int
			if archive {
				if out == "" {
					out = "results.tar.zst"
				}
				n, err = conn.FetchArchive(cmd.Context(), remoteDir, out)
			} else {
				if out == "" {
					out = "results"
				}
				n, err = conn.Fetch(cmd.Context(), remoteDir, out)
			}
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("hpc.fetch_done", n, out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "local destination")
	cmd.Flags().BoolVar(&archive, "archive", false, "bundle results into a .tar.zst archive")
	return cmd
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage HPC connection profiles",
	}
	cmd.AddCommand(
		newProfileAddCmd(),
		newProfileListCmd(),
		newProfileRemoveCmd(),
		newProfileTrustCmd(),
	)
	return cmd
}

func newProfileAddCmd() *cobra.Command {
	var p model.HPCProfile
	var auth string
	var scheduler string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a connection profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Name = args[0]
			p.Auth = model.AuthMethod(auth)
			p.Scheduler = model.SchedulerType(scheduler)
			if p.Username == "" {
				return fmt.Errorf("--user is required")
			}
			if p.Hostname == "" {
				return fmt.Errorf("--host is required")
			}

			if _, err := db.AddProfile(p); err != nil {
				return err
			}
			fmt.Println(i18n.T("profile.added", p.Name, p.Username, p.Hostname, p.Scheduler))
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Hostname, "host", "", "hostname")
	cmd.Flags().IntVar(&p.Port, "port", 22, "SSH port")
	cmd.Flags().StringVar(&p.Username, "user", "", "username")
	cmd.Flags().StringVar(&auth, "auth", "agent", `auth method ("key", "agent", "password")`)
	cmd.Flags().StringVar(&p.KeyPath, "key", "", "private key path for key auth")
	cmd.Flags().StringVar(&scheduler, "scheduler", "slurm", `scheduler ("slurm", "pbs", "lsf")`)
	cmd.Flags().StringVar(&p.RemoteDir, "remote-dir", "", "base directory for job files")
	cmd.Flags().StringVar(&p.Queue, "queue", "", "default queue/partition")
	return cmd
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connection profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := db.GetAllProfiles()
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				fmt.Println(i18n.T("profile.none"))
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "NAME\tHOST\tUSER\tAUTH\tSCHEDULER\tQUEUE")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					p.Name, p.Addr(), p.Username, p.Auth, p.Scheduler, p.Queue)
			}
			return nil
		},
	}
}

func newProfileRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a connection profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.DeleteProfile(args[0]); err != nil {
				return err
			}
			fmt.Println(i18n.T("profile.removed", args[0]))
			return nil
		},
	}
}

func newProfileTrustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust <name>",
		Short: "Fetch and trust a profile's host key",
		Long: `Retrieves the host key of the profile's cluster and records it as
trusted. Later connections fail loudly if the key changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := db.GetProfile(args[0])
			if err != nil {
				return fmt.Errorf("%s", i18n.T("hpc.unknown_profile", args[0]))
			}
			fingerprint, err := hpc.TrustHost(profile.Addr())
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("hpc.trusted", profile.Addr()))
			fmt.Printf("fingerprint: %s\n", fingerprint)
			return nil
		},
	}
}
