package archive

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Repack re-encodes the archive at file into the container format named by
// targetType (an extension, with or without dot). The source provider is
// resolved before any rename so an in-place repack (same resulting name)
// can stash the original out of the way. On any failure the original file
// is restored and no partial target remains. With dryrun only the planning
// steps run; the filesystem is left untouched.
func Repack(file, targetType string, dryrun bool) error {
	return RepackIn(DefaultRegistry(), file, targetType, dryrun)
}

// RepackIn is Repack against an explicit registry.
func RepackIn(reg *Registry, file, targetType string, dryrun bool) error {
	srcProvider := reg.ForFile(file)
	if srcProvider == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, file)
	}

	targetType = strings.TrimPrefix(strings.ToLower(targetType), ".")
	dstProvider := reg.ForExtension(targetType)
	if dstProvider == nil {
		return fmt.Errorf("%w: .%s", ErrNotFound, targetType)
	}
	if !dstProvider.WriteEnabled() {
		return fmt.Errorf("%w: write via %s", ErrNotSupported, dstProvider.Name())
	}

	srcExt := reg.MatchedExtension(file)
	dst := strings.TrimSuffix(file, srcExt) + "." + targetType

	inPlace := dst == file
	if !inPlace {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, dst)
		}
	}

	if dryrun {
		return nil
	}

	src := file
	if inPlace {
		stash := file + "." + randomSuffix()
		if err := os.Rename(file, stash); err != nil {
			return fmt.Errorf("stashing source: %w", err)
		}
		src = stash
	}

	if err := repackStream(NewWith(src, srcProvider), NewWith(dst, dstProvider)); err != nil {
		os.Remove(dst)
		if inPlace {
			if rerr := os.Rename(src, file); rerr != nil {
				return fmt.Errorf("restoring source after failed repack: %v (repack: %w)", rerr, err)
			}
		}
		return err
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing repacked source: %w", err)
	}
	return nil
}

func repackStream(src, dst *Archive) error {
	return src.Each(func(entry string, r io.Reader) error {
		w, err := dst.Writer(entry)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, r); err != nil {
			w.Close()
			return fmt.Errorf("repacking entry %q: %w", entry, err)
		}
		return w.Close()
	})
}
