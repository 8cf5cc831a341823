// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package hpc

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/voxaero/meshpilot/internal/db"
	"github.com/voxaero/meshpilot/internal/logging"
	"github.com/voxaero/meshpilot/internal/model"
)

// Connector is an authenticated session to one cluster. It is not safe for
// concurrent use; open one Connector per goroutine.
type Connector struct {
	profile model.HPCProfile
	sched   Scheduler
	client  *ssh.Client
	sftp    *sftp.Client
}

// hostKeyCallback verifies the remote host key against the trusted key
// recorded in the database. Unknown hosts are rejected; 'meshpilot profile
// trust' records the key after an explicit fingerprint check.
func hostKeyCallback(hostname string, remote net.Addr, key ssh.PublicKey) error {
	host, _, err := net.SplitHostPort(hostname)
	if err != nil {
		host = hostname
	}

	presentedKey := string(ssh.MarshalAuthorizedKey(key))

	knownKey, err := db.GetKnownHostKey(host)
	if err != nil {
		return fmt.Errorf("failed to query known_hosts database: %w", err)
	}
	if knownKey == "" {
		return fmt.Errorf("unknown host key for %s. run 'meshpilot profile trust' to add it", host)
	}
	if knownKey != presentedKey {
		return fmt.Errorf("!!! HOST KEY MISMATCH FOR %s !!!\nRemote key presented: %s\nThis could be a man-in-the-middle attack", host, presentedKey)
	}
	return nil
}

// Connect opens an SSH and SFTP session to the profile's cluster. For key
// auth the private key is read from the profile's key path and the SSH
// agent serves as fallback on an auth failure. password is only consulted
// when the profile is configured for password auth.
func Connect(profile model.HPCProfile, password string) (*Connector, error) {
	sched, err := ForType(profile.Scheduler)
	if err != nil {
		return nil, err
	}

	addr := profile.Addr()
	var client *ssh.Client
	var finalErr error

	switch profile.Auth {
	case model.AuthPassword:
		config := &ssh.ClientConfig{
			User:            profile.Username,
			Auth:            []ssh.AuthMethod{ssh.Password(password)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         10 * time.Second,
		}
		client, err = ssh.Dial("tcp", addr, config)
		if err != nil {
			return nil, fmt.Errorf("connection with password failed: %w", err)
		}

	default:
		// Attempt 1: the configured private key.
		if profile.KeyPath != "" {
			keyData, err := os.ReadFile(profile.KeyPath)
			if err != nil {
				return nil, fmt.Errorf("unable to read private key %s: %w", profile.KeyPath, err)
			}
			signer, err := ssh.ParsePrivateKey(keyData)
			if err != nil {
				return nil, fmt.Errorf("unable to parse private key: %w", err)
			}

			config := &ssh.ClientConfig{
				User:            profile.Username,
				Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
				HostKeyCallback: hostKeyCallback,
				Timeout:         10 * time.Second,
			}
			client, err = ssh.Dial("tcp", addr, config)
			if err == nil {
				break
			}
			if !strings.Contains(err.Error(), "unable to authenticate") {
				return nil, fmt.Errorf("connection with key failed: %w", err)
			}
			finalErr = err
		}

		// Attempt 2: the SSH agent.
		if client == nil {
			agentClient := getSSHAgent()
			if agentClient == nil {
				if finalErr != nil {
					return nil, fmt.Errorf("key authentication failed, and no SSH agent available for fallback: %w", finalErr)
				}
				return nil, fmt.Errorf("no authentication method available (no key configured and no ssh agent found)")
			}

			config := &ssh.ClientConfig{
				User:            profile.Username,
				Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)},
				HostKeyCallback: hostKeyCallback,
				Timeout:         10 * time.Second,
			}
			client, err = ssh.Dial("tcp", addr, config)
			if err != nil {
				return nil, fmt.Errorf("connection with ssh agent failed: %w", err)
			}
		}
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}

	logging.Debugf("hpc: connected to %s", profile.String())
	return &Connector{profile: profile, sched: sched, client: client, sftp: sftpClient}, nil
}

// Close closes the underlying SSH and SFTP clients.
func (c *Connector) Close() {
	if c.sftp != nil {
		c.sftp.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
}

// Profile returns the connection profile.
func (c *Connector) Profile() model.HPCProfile { return c.profile }

// RunCommand executes cmd on the remote host and returns its combined
// output. The session is torn down if ctx expires first.
func (c *Connector) RunCommand(ctx context.Context, cmd string) (string, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out

	done := make(chan error, 1)
	if err := session.Start(cmd); err != nil {
		return "", fmt.Errorf("failed to start %q: %w", cmd, err)
	}
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return out.String(), ctx.Err()
	case err := <-done:
		if err != nil {
			return out.String(), fmt.Errorf("%q failed: %w: %s", cmd, err, strings.TrimSpace(out.String()))
		}
		return out.String(), nil
	}
}

// ClusterInfo is a snapshot of the remote system.
type ClusterInfo struct {
	OS               string   `json:"os"`
	CPUCount         string   `json:"cpu_count"`
	Memory           string   `json:"memory"`
	SchedulerVersion string   `json:"scheduler_version"`
	Queues           []string `json:"queues"`
}

// Info probes the cluster for OS, CPU, memory and scheduler details.
// Individual probe failures leave the field empty rather than failing the
// whole call.
func (c *Connector) Info(ctx context.Context) (*ClusterInfo, error) {
	info := &ClusterInfo{}

	if out, err := c.RunCommand(ctx, `grep PRETTY_NAME /etc/os-release | cut -d'"' -f2`); err == nil {
		info.OS = strings.TrimSpace(out)
	}
	if out, err := c.RunCommand(ctx, "nproc"); err == nil {
		info.CPUCount = strings.TrimSpace(out)
	}
	if out, err := c.RunCommand(ctx, "free -h | grep Mem | awk '{print $2}'"); err == nil {
		info.Memory = strings.TrimSpace(out)
	}

	switch c.profile.Scheduler {
	case model.SchedulerSlurm:
		if out, err := c.RunCommand(ctx, "sinfo --version"); err == nil {
			info.SchedulerVersion = strings.TrimSpace(out)
		}
		if out, err := c.RunCommand(ctx, "sinfo -h -o %P"); err == nil {
			for _, q := range strings.Split(strings.TrimSpace(out), "\n") {
				if q != "" {
					info.Queues = append(info.Queues, strings.TrimSuffix(q, "*"))
				}
			}
		}
	case model.SchedulerPBS:
		if out, err := c.RunCommand(ctx, "qstat --version"); err == nil {
			info.SchedulerVersion = strings.TrimSpace(out)
		}
		if out, err := c.RunCommand(ctx, "qstat -Q"); err == nil {
			lines := strings.Split(strings.TrimSpace(out), "\n")
			for i, line := range lines {
				if i < 2 || line == "" { // header rows
					continue
				}
				info.Queues = append(info.Queues, strings.Fields(line)[0])
			}
		}
	case model.SchedulerLSF:
		if out, err := c.RunCommand(ctx, "lsid | head -1"); err == nil {
			info.SchedulerVersion = strings.TrimSpace(out)
		}
		if out, err := c.RunCommand(ctx, "bqueues -o queue_name -noheader"); err == nil {
			for _, q := range strings.Split(strings.TrimSpace(out), "\n") {
				if q != "" {
					info.Queues = append(info.Queues, q)
				}
			}
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return info, nil
}

// DetectScheduler asks the remote host which batch system it runs.
func (c *Connector) DetectScheduler(ctx context.Context) (model.SchedulerType, error) {
	out, _ := c.RunCommand(ctx, "command -v sbatch qsub bsub")
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return DetectSchedulerType(out)
}

// Upload copies a local file to the remote path, creating parent
// directories as needed.
func (c *Connector) Upload(localPath, remotePath string) error {
	if err := c.sftp.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("failed to create remote directory %s: %w", path.Dir(remotePath), err)
	}
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := c.sftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(src); err != nil {
		return fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	return nil
}

// Submit stages the input files, writes the job script and submits it. The
// returned job is recorded in the local database.
func (c *Connector) Submit(ctx context.Context, req JobRequest, inputFiles []string) (*model.Job, error) {
	req = req.normalize()

	remoteDir := path.Join(c.remoteBase(), fmt.Sprintf("%s_%d", req.Name, time.Now().Unix()))
	if err := c.sftp.MkdirAll(remoteDir); err != nil {
		return nil, fmt.Errorf("failed to create job directory %s: %w", remoteDir, err)
	}

	for _, f := range inputFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remote := path.Join(remoteDir, path.Base(strings.ReplaceAll(f, `\`, "/")))
		if err := c.Upload(f, remote); err != nil {
			return nil, err
		}
		logging.Debugf("hpc: uploaded %s", remote)
	}

	scriptPath := path.Join(remoteDir, "job.sh")
	script := RenderJobScript(c.sched, req)
	f, err := c.sftp.Create(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create job script: %w", err)
	}
	if _, err := f.Write([]byte(script)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write job script: %w", err)
	}
	f.Close()
	if err := c.sftp.Chmod(scriptPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to chmod job script: %w", err)
	}

	out, err := c.RunCommand(ctx, c.sched.SubmitCommand(remoteDir, scriptPath))
	if err != nil {
		return nil, fmt.Errorf("job submission failed: %w", err)
	}
	id, err := c.sched.ParseSubmit(out)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		Name:        req.Name,
		ProfileName: c.profile.Name,
		SchedulerID: id,
		Scheduler:   c.profile.Scheduler,
		Status:      model.JobPending,
		RemoteDir:   remoteDir,
		SubmitTime:  time.Now(),
	}
	if _, err := db.AddJob(*job); err != nil {
		logging.Errorf("hpc: failed to record job %s: %v", id, err)
	}
	logging.Infof("hpc: submitted job %s as %s", req.Name, id)
	return job, nil
}

// remoteBase returns the configured remote working directory or a default
// under the user's home.
func (c *Connector) remoteBase() string {
	if c.profile.RemoteDir != "" {
		return c.profile.RemoteDir
	}
	return "meshpilot_jobs"
}

// Status queries the scheduler for one job and updates the local record.
func (c *Connector) Status(ctx context.Context, schedulerID string) (model.JobStatus, error) {
	out, _ := c.RunCommand(ctx, c.sched.StatusCommand(schedulerID))
	if err := ctx.Err(); err != nil {
		return model.JobUnknown, err
	}
	status, runtime := c.sched.ParseStatus(out, schedulerID)

	if status == model.JobUnknown {
		if cmd := c.sched.FinishedStatusCommand(schedulerID); cmd != "" {
			out, _ = c.RunCommand(ctx, cmd)
			if err := ctx.Err(); err != nil {
				return model.JobUnknown, err
			}
			status, runtime = c.sched.ParseStatus(out, schedulerID)
		}
	}

	if err := db.UpdateJobStatus(schedulerID, status, runtime); err != nil {
		logging.Debugf("hpc: status update for %s not recorded: %v", schedulerID, err)
	}
	return status, nil
}

// Jobs lists the user's jobs as the scheduler reports them.
func (c *Connector) Jobs(ctx context.Context) ([]JobInfo, error) {
	out, err := c.RunCommand(ctx, c.sched.ListCommand())
	if err != nil {
		return nil, err
	}
	return c.sched.ParseList(out), nil
}

// Cancel asks the scheduler to kill the job and updates the local record.
func (c *Connector) Cancel(ctx context.Context, schedulerID string) error {
	if _, err := c.RunCommand(ctx, c.sched.CancelCommand(schedulerID)); err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", schedulerID, err)
	}
	if err := db.UpdateJobStatus(schedulerID, model.JobCancelled, ""); err != nil {
		logging.Debugf("hpc: cancel for %s not recorded: %v", schedulerID, err)
	}
	logging.Infof("hpc: cancelled job %s", schedulerID)
	return nil
}

// GetRemoteHostKey connects to a host just to retrieve its public key, for
// the explicit trust flow.
func GetRemoteHostKey(host string) (ssh.PublicKey, error) {
	keyChan := make(chan ssh.PublicKey, 1)

	config := &ssh.ClientConfig{
		User: "meshpilot-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyChan <- key
			return fmt.Errorf("meshpilot: successfully retrieved host key")
		},
		Timeout: 5 * time.Second,
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "22")
	}

	_, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		if strings.Contains(err.Error(), "meshpilot: successfully retrieved host key") {
			return <-keyChan, nil
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
	}
	return nil, fmt.Errorf("ssh.Dial succeeded unexpectedly, could not retrieve key")
}

// TrustHost fetches the host key and records it as trusted.
func TrustHost(host string) (string, error) {
	key, err := GetRemoteHostKey(host)
	if err != nil {
		return "", err
	}
	marshaled := string(ssh.MarshalAuthorizedKey(key))
	if err := db.AddKnownHostKey(host, marshaled); err != nil {
		return "", fmt.Errorf("failed to store host key: %w", err)
	}
	return ssh.FingerprintSHA256(key), nil
}
