// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package adb drives Android devices over the adb command line tool. It is the
// low-level half of the device handle; snippet RPCs ride on TCP forwards
// created here.
package adb

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Device is a handle to one attached Android device, addressed by serial.
type Device struct {
	Serial string

	// Cached build properties, filled by NewDevice.
	Product string
	Model   string
	Device  string

	log *logrus.Entry
}

// NewDevice returns a handle to the device with the given serial and caches
// its basic build properties.
func NewDevice(ctx context.Context, serial string) (*Device, error) {
	d := &Device{Serial: serial, log: logrus.WithField("serial", serial)}
	for _, p := range []struct {
		prop string
		dst  *string
	}{
		{"ro.product.name", &d.Product},
		{"ro.product.model", &d.Model},
		{"ro.product.device", &d.Device},
	} {
		v, err := d.GetProp(ctx, p.prop)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s from %s", p.prop, serial)
		}
		*p.dst = v
	}
	return d, nil
}

// Devices lists the serials of all devices currently in the "device" state.
func Devices(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "adb", "devices").Output()
	if err != nil {
		return nil, errors.Wrap(err, "adb devices failed")
	}
	var serials []string
	for _, line := range strings.Split(string(out), "\n")[1:] {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	return serials, nil
}

// Command returns an adb command bound to this device, e.g. Command(ctx, "root").
func (d *Device) Command(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "adb", append([]string{"-s", d.Serial}, args...)...)
}

// ShellCommand returns an adb shell command bound to this device.
func (d *Device) ShellCommand(ctx context.Context, args ...string) *exec.Cmd {
	return d.Command(ctx, append([]string{"shell"}, args...)...)
}

// Output runs an adb command and returns its trimmed stdout.
func (d *Device) Output(ctx context.Context, args ...string) (string, error) {
	out, err := d.Command(ctx, args...).Output()
	if err != nil {
		return "", errors.Wrapf(err, "adb %s failed", strings.Join(args, " "))
	}
	return strings.TrimSpace(string(out)), nil
}

// ShellOutput runs an adb shell command and returns its trimmed stdout.
func (d *Device) ShellOutput(ctx context.Context, args ...string) (string, error) {
	return d.Output(ctx, append([]string{"shell"}, args...)...)
}

// GetProp reads an Android system property.
func (d *Device) GetProp(ctx context.Context, name string) (string, error) {
	return d.ShellOutput(ctx, "getprop", name)
}

// SDKVersion returns the device's SDK level.
func (d *Device) SDKVersion(ctx context.Context) (int, error) {
	v, err := d.GetProp(ctx, "ro.build.version.sdk")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected SDK version %q", v)
	}
	return n, nil
}

// InstallOption is an option flag passed to adb install.
type InstallOption string

// InstallOptionGrantPermissions grants all runtime permissions at install.
const InstallOptionGrantPermissions InstallOption = "-g"

// Install installs an APK onto the device.
func (d *Device) Install(ctx context.Context, apkPath string, opts ...InstallOption) error {
	args := []string{"install", "-r"}
	for _, o := range opts {
		args = append(args, string(o))
	}
	args = append(args, apkPath)
	if out, err := d.Command(ctx, args...).CombinedOutput(); err != nil {
		return errors.Wrapf(err, "failed to install %s: %s", apkPath, strings.TrimSpace(string(out)))
	}
	return nil
}

// InstalledPackages returns the set of installed package names.
func (d *Device) InstalledPackages(ctx context.Context) (map[string]struct{}, error) {
	out, err := d.ShellOutput(ctx, "pm", "list", "packages")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list installed packages")
	}
	pkgs := make(map[string]struct{})
	for _, line := range strings.Split(out, "\n") {
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "package:"); ok {
			pkgs[name] = struct{}{}
		}
	}
	return pkgs, nil
}

// EnsureInstalled installs the APK at apkPath unless pkg is already present
// on the device. Runtime permissions are granted at install.
func (d *Device) EnsureInstalled(ctx context.Context, pkg, apkPath string) error {
	pkgs, err := d.InstalledPackages(ctx)
	if err != nil {
		return err
	}
	if _, ok := pkgs[pkg]; ok {
		return nil
	}
	d.Log().Infof("Installing %s from %s", pkg, apkPath)
	return d.Install(ctx, apkPath, InstallOptionGrantPermissions)
}

// GrantPermission grants a runtime permission to a package.
func (d *Device) GrantPermission(ctx context.Context, pkg, permission string) error {
	if err := d.ShellCommand(ctx, "pm", "grant", pkg, permission).Run(); err != nil {
		return errors.Wrapf(err, "failed to grant %s to %s", permission, pkg)
	}
	return nil
}

// ForwardTCP forwards a device TCP port to an automatically chosen host port
// and returns the host port.
func (d *Device) ForwardTCP(ctx context.Context, devicePort int) (int, error) {
	out, err := d.Output(ctx, "forward", "tcp:0", "tcp:"+strconv.Itoa(devicePort))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to forward device port %d", devicePort)
	}
	hostPort, err := strconv.Atoi(out)
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected adb forward output %q", out)
	}
	return hostPort, nil
}

// RemoveForwardTCP removes the forward on the given host port.
func (d *Device) RemoveForwardTCP(ctx context.Context, hostPort int) error {
	if err := d.Command(ctx, "forward", "--remove", "tcp:"+strconv.Itoa(hostPort)).Run(); err != nil {
		return errors.Wrapf(err, "failed to remove forward of host port %d", hostPort)
	}
	return nil
}

// SetScreenOnAndUnlock wakes the screen and dismisses the keyguard so that
// foreground-only APIs behave during tests.
func (d *Device) SetScreenOnAndUnlock(ctx context.Context) error {
	if err := d.ShellCommand(ctx, "input", "keyevent", "KEYCODE_WAKEUP").Run(); err != nil {
		return errors.Wrap(err, "failed to wake screen")
	}
	if err := d.ShellCommand(ctx, "wm", "dismiss-keyguard").Run(); err != nil {
		return errors.Wrap(err, "failed to dismiss keyguard")
	}
	return nil
}

// WaitForBootComplete polls getprop until the boot-completed property reports 1.
func (d *Device) WaitForBootComplete(ctx context.Context) error {
	for {
		v, err := d.GetProp(ctx, "sys.boot_completed")
		if err == nil && v == "1" {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "device did not finish booting")
		case <-time.After(time.Second):
		}
	}
}

// Log returns the device-scoped logger.
func (d *Device) Log() *logrus.Entry {
	if d.log == nil {
		d.log = logrus.WithField("serial", d.Serial)
	}
	return d.log
}
