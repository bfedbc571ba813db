package resolver

import "net"

// Order reorders addrs stably according to family, a comma-separated
// preference list drawn from resource.DNSOrder such as "inet,inet6"
// or "inet6,inet". Families not named in the list keep their relative
// position after the named ones, in original order. An empty family
// list leaves addrs untouched.
func Order(addrs []net.IP, families []string) []net.IP {
	if len(families) == 0 || len(addrs) < 2 {
		return addrs
	}
	rank := func(ip net.IP) int {
		isV4 := ip.To4() != nil
		for i, f := range families {
			switch f {
			case "inet":
				if isV4 {
					return i
				}
			case "inet6":
				if !isV4 {
					return i
				}
			}
		}
		return len(families)
	}
	out := append([]net.IP(nil), addrs...)
	// stable insertion sort by rank: address counts here are always
	// small (a handful of A/AAAA records), so O(n^2) is plenty.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && rank(out[j]) < rank(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// ParseOrder splits a "inet,inet6"-style string from resource.DNSOrder
// into a family list, ignoring blanks.
func ParseOrder(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
