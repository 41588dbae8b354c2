/*
Package umbra contains the syscall interception and virtualized memory core of
the umbra discrete-event network simulator.

# Introduction

Umbra runs unmodified network applications inside a discrete-event simulation.
Every system call a managed process makes is transparently redirected into a
simulated equivalent so that sockets, pipes, clocks, randomness, and memory
never touch the real kernel or network. This module implements the machinery
that every emulated syscall relies on:

  - The per-thread syscall handler, a state machine that dispatches intercepted
    syscalls, blocks them on readiness or a timeout, and resumes them when the
    simulation wakes the thread ([internal/host]).

  - The address-space manager, which gives the simulator scoped read/write
    access to a managed process's virtual memory and fully emulates brk, mmap,
    munmap, mremap, and mprotect ([internal/mem]).

  - The descriptor model unifying legacy handles and reference-counted posix
    file objects, with status-listener readiness notification
    ([internal/descriptor]).

  - The chunked byte queue used by descriptor implementations to buffer
    streamed data ([internal/bytequeue]).

  - The interposition shim table that collapses every intercepted libc entry
    point into a single raw-syscall trap ([internal/interpose]).

The surrounding simulator (the event scheduler, the network model, the
configuration layer) lives outside this module and drives it through the
handler's dispatch entry point and the simulated clock in [internal/event].
*/
package umbra
