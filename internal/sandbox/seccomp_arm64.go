/*
Copyright 2026 The glycin-go Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sandbox

import "golang.org/x/sys/unix"

const auditArch = unix.AUDIT_ARCH_AARCH64

// Same allow-list as amd64 minus the legacy calls aarch64 never had
// (poll, getrlimit; ppoll and prlimit64 cover both).
var allowedSyscalls = []int{
	unix.SYS_READ,
	unix.SYS_WRITE,
	unix.SYS_READV,
	unix.SYS_WRITEV,
	unix.SYS_PREAD64,
	unix.SYS_PWRITE64,
	unix.SYS_LSEEK,
	unix.SYS_CLOSE,
	unix.SYS_FSTAT,
	unix.SYS_FCNTL,
	unix.SYS_FTRUNCATE,
	unix.SYS_DUP,
	unix.SYS_DUP3,
	unix.SYS_MEMFD_CREATE,
	unix.SYS_MMAP,
	unix.SYS_MUNMAP,
	unix.SYS_MREMAP,
	unix.SYS_MPROTECT,
	unix.SYS_MADVISE,
	unix.SYS_BRK,
	unix.SYS_SENDMSG,
	unix.SYS_RECVMSG,
	unix.SYS_PPOLL,
	unix.SYS_EPOLL_CREATE1,
	unix.SYS_EPOLL_CTL,
	unix.SYS_EPOLL_PWAIT,
	unix.SYS_EVENTFD2,
	unix.SYS_FUTEX,
	unix.SYS_CLONE,
	unix.SYS_CLONE3,
	unix.SYS_SET_ROBUST_LIST,
	unix.SYS_RSEQ,
	unix.SYS_SCHED_YIELD,
	unix.SYS_SCHED_GETAFFINITY,
	unix.SYS_SIGALTSTACK,
	unix.SYS_RT_SIGACTION,
	unix.SYS_RT_SIGPROCMASK,
	unix.SYS_RT_SIGRETURN,
	unix.SYS_GETTID,
	unix.SYS_GETPID,
	unix.SYS_TGKILL,
	unix.SYS_GETRANDOM,
	unix.SYS_CLOCK_GETTIME,
	unix.SYS_CLOCK_GETRES,
	unix.SYS_CLOCK_NANOSLEEP,
	unix.SYS_NANOSLEEP,
	unix.SYS_GETTIMEOFDAY,
	unix.SYS_RESTART_SYSCALL,
	unix.SYS_PRLIMIT64,
	unix.SYS_EXIT,
	unix.SYS_EXIT_GROUP,
}
