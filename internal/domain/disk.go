package domain

import (
	"sort"
	"strconv"
	"strings"
)

// DiskFamilies lists the bus families searched for the main disk, in
// priority order.
var DiskFamilies = []string{"virtio", "scsi", "sata", "ide"}

const cdromSuffix = ",media=cdrom"

// diskIndex splits a slot key such as "scsi0" into its bus family and
// index. ok is false for keys that are not disk slots (scsihw, net0, ...).
func diskIndex(key string) (family string, index int, ok bool) {
	for _, f := range DiskFamilies {
		if !strings.HasPrefix(key, f) {
			continue
		}
		digits := key[len(f):]
		if digits == "" {
			return "", 0, false
		}
		n, err := strconv.Atoi(digits)
		if err != nil || n < 0 {
			return "", 0, false
		}
		return f, n, true
	}
	return "", 0, false
}

// FindMainDisk picks the slot of the VM's primary disk: the first bus family
// in DiskFamilies that has a slot whose key ends in 0 and whose descriptor
// is not a CD-ROM. Within a family the lowest index wins, so the result does
// not depend on map iteration order.
func FindMainDisk(cfg VmConfig) (string, bool) {
	for _, family := range DiskFamilies {
		var matches []string
		for key, value := range cfg {
			f, _, ok := diskIndex(key)
			if !ok || f != family {
				continue
			}
			if !strings.HasSuffix(key, "0") || strings.HasSuffix(value, cdromSuffix) {
				continue
			}
			matches = append(matches, key)
		}

		if len(matches) > 0 {
			sortSlots(matches)
			return matches[0], true
		}
	}

	return "", false
}

// DiskCandidates returns every disk-family slot of the config, sorted, as
// "key=descriptor" pairs for diagnostics.
func DiskCandidates(cfg VmConfig) []string {
	var keys []string
	for key := range cfg {
		if _, _, ok := diskIndex(key); ok {
			keys = append(keys, key)
		}
	}
	sortSlots(keys)

	ret := make([]string, 0, len(keys))
	for _, key := range keys {
		ret = append(ret, key+"="+cfg[key])
	}
	return ret
}

func sortSlots(keys []string) {
	rank := map[string]int{}
	for i, f := range DiskFamilies {
		rank[f] = i
	}

	sort.Slice(keys, func(i, j int) bool {
		fi, ni, _ := diskIndex(keys[i])
		fj, nj, _ := diskIndex(keys[j])
		if fi != fj {
			return rank[fi] < rank[fj]
		}
		return ni < nj
	})
}
