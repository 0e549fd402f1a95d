package wii

// Options configures a Disc/Partition extraction run. It replaces the
// source's file-scope static configuration flags (just_a_partition,
// dump_partition_data, uncompress_yaz0, unpack_rarc,
// max_size_to_auto_analyse) with an explicit value threaded through the
// session instead of process-wide state.
type Options struct {
	// JustAPartition treats the input as a single pre-decrypted partition
	// image: the disc/partition-table walk is skipped and Stream reads
	// degrade to a raw passthrough, bypassing decryption and verification.
	JustAPartition bool

	// DumpPartitionData additionally emits the entire decrypted and
	// verified logical partition stream to a file named "###dat###".
	DumpPartitionData bool

	// UncompressYaz0 auto-decompresses Yaz0-magic files below
	// MaxSizeToAutoAnalyse.
	UncompressYaz0 bool

	// UnpackRARC annotates RARC-magic files in the diagnostic log. The
	// archive itself is never unpacked; it is written out verbatim.
	UnpackRARC bool

	// MaxSizeToAutoAnalyse bounds the size of a file that will be read
	// into memory for magic sniffing; larger files are always streamed
	// verbatim.
	MaxSizeToAutoAnalyse uint64

	// SkipInvalidPartitions demotes a malformed partition (header that
	// fails to parse, FST indices outside the entry count) from a fatal
	// disc-wide error to "log and continue with the next partition",
	// per spec.md §7's license to promote format assumptions to a
	// recoverable error.
	SkipInvalidPartitions bool
}

// DefaultOptions returns the defaults from spec.md §6: Yaz0 decompression
// and RARC recognition on, everything else off, a 16 MiB auto-analyse
// threshold.
func DefaultOptions() Options {
	return Options{
		UncompressYaz0:        true,
		UnpackRARC:            true,
		MaxSizeToAutoAnalyse:  0x1000000,
		SkipInvalidPartitions: false,
	}
}
