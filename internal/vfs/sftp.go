package vfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/term"
)

const sshScheme = "ssh://"

// SFTP implements FS over an SSH connection.
type SFTP struct {
	client *sftp.Client
	sshc   *ssh.Client
	log    zerolog.Logger
}

// IsSSHURL reports whether root names a remote ssh:// location.
func IsSSHURL(root string) bool {
	return strings.HasPrefix(root, sshScheme)
}

// DialSSH parses an ssh:// URL, connects, and returns the FS and remote root path.
// Format: ssh://user@host[:port]/path
// Tries SSH agent first, then prompts for a password.
func DialSSH(rawURL string, log zerolog.Logger) (*SFTP, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid ssh URL: %w", err)
	}
	if u.Scheme != "ssh" {
		return nil, "", fmt.Errorf("expected ssh:// scheme, got %q", u.Scheme)
	}

	user := u.User.Username()
	if user == "" {
		user = os.Getenv("USER")
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "22"
	}
	remotePath := u.Path
	if remotePath == "" {
		remotePath = "/"
	}

	var authMethods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			authMethods = append(authMethods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		authMethods = append(authMethods, ssh.PasswordCallback(func() (string, error) {
			fmt.Fprintf(os.Stderr, "Password for %s@%s: ", user, host)
			pw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			return string(pw), err
		}))
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := net.JoinHostPort(host, port)
	log.Info().Str("addr", addr).Str("user", user).Msg("connecting")
	sshc, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, "", fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	sc, err := sftp.NewClient(sshc)
	if err != nil {
		sshc.Close()
		return nil, "", fmt.Errorf("sftp session: %w", err)
	}

	log.Info().Str("addr", addr).Str("root", remotePath).Msg("connected")
	return &SFTP{client: sc, sshc: sshc, log: log}, remotePath, nil
}

func (s *SFTP) Close() error {
	s.client.Close()
	return s.sshc.Close()
}

// ---- FS interface ----

func (s *SFTP) Walk(root string, fn fs.WalkDirFunc) error {
	walker := s.client.Walk(root)
	for walker.Step() {
		if walker.Err() != nil {
			if err := fn(walker.Path(), nil, walker.Err()); err != nil {
				if errors.Is(err, fs.SkipAll) {
					return nil
				}
				return err
			}
			continue
		}
		info := walker.Stat()
		entry := fs.FileInfoToDirEntry(info)
		if err := fn(walker.Path(), entry, nil); err != nil {
			switch {
			case errors.Is(err, fs.SkipDir):
				walker.SkipDir()
				continue
			case errors.Is(err, fs.SkipAll):
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *SFTP) Stat(path string) (fs.FileInfo, error) {
	return s.client.Stat(path)
}

func (s *SFTP) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	f, err := s.client.OpenFile(path, flag)
	if err != nil {
		return nil, err
	}
	if flag&os.O_CREATE != 0 {
		_ = f.Chmod(perm)
	}
	return f, nil
}

func (s *SFTP) Remove(path string) error {
	return s.client.Remove(path)
}

func (s *SFTP) Rename(oldpath, newpath string) error {
	return s.client.Rename(oldpath, newpath)
}

func (s *SFTP) Touch(path string) error {
	f, err := s.client.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func (s *SFTP) CopyToLocal(remotePath, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	src, err := s.client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("sftp open %s: %w", remotePath, err)
	}
	defer src.Close()
	dst, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer dst.Close()
	size, err := io.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("download %s: %w", remotePath, err)
	}
	s.log.Info().Str("path", remotePath).Str("size", humanize.IBytes(uint64(size))).Msg("downloaded")
	return nil
}

func (s *SFTP) CopyFromLocal(localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := s.client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftp create %s: %w", remotePath, err)
	}
	size, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		return fmt.Errorf("upload %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", remotePath, err)
	}
	s.log.Info().Str("path", remotePath).Str("size", humanize.IBytes(uint64(size))).Msg("uploaded")
	return nil
}

func (s *SFTP) IsRemote() bool { return true }
